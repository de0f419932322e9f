package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gatherly/gathersync/internal/models"
)

// TestServer is an in-memory Gatherly API for integration tests. It speaks
// the same REST surface as the production service: bearer-token auth, keyed
// record writes, tombstoned deletes, and a 204 connectivity probe.
type TestServer struct {
	*httptest.Server

	mu      sync.RWMutex
	records map[string]*models.Record
	tokens  map[string]bool

	// Failing, when set, makes every data endpoint answer 503.
	failing bool
}

// NewTestServer starts a fake API accepting the given tokens.
func NewTestServer(tokens ...string) *TestServer {
	ts := &TestServer{
		records: make(map[string]*models.Record),
		tokens:  make(map[string]bool),
	}
	for _, token := range tokens {
		ts.tokens[token] = true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/generate_204", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/events", ts.handleCollection)
	mux.HandleFunc("/api/v1/events/", ts.handleRecord)

	ts.Server = httptest.NewServer(mux)
	return ts
}

// SetFailing toggles 503 responses on the data endpoints.
func (ts *TestServer) SetFailing(failing bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failing = failing
}

// Seed stores a record directly.
func (ts *TestServer) Seed(rec *models.Record) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.records[rec.ID] = rec.Clone()
}

// Record returns a stored record by ID, or nil.
func (ts *TestServer) Record(id string) *models.Record {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if rec, ok := ts.records[id]; ok {
		return rec.Clone()
	}
	return nil
}

// Len reports stored records, tombstones included.
func (ts *TestServer) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.records)
}

func (ts *TestServer) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return token != header && ts.tokens[token]
}

func (ts *TestServer) gate(w http.ResponseWriter, r *http.Request) bool {
	if !ts.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	ts.mu.RLock()
	failing := ts.failing
	ts.mu.RUnlock()
	if failing {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (ts *TestServer) handleCollection(w http.ResponseWriter, r *http.Request) {
	if !ts.gate(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		includeDeleted := r.URL.Query().Get("include_deleted") == "true"

		ts.mu.RLock()
		records := make([]*models.Record, 0, len(ts.records))
		for _, rec := range ts.records {
			if rec.IsDeleted() && !includeDeleted {
				continue
			}
			records = append(records, rec.Clone())
		}
		ts.mu.RUnlock()

		writeJSON(w, http.StatusOK, records)

	case http.MethodPost:
		var rec models.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		ts.mu.Lock()
		ts.records[rec.ID] = rec.Clone()
		ts.mu.Unlock()

		writeJSON(w, http.StatusCreated, &rec)

	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (ts *TestServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !ts.gate(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/events/")

	switch r.Method {
	case http.MethodGet:
		rec := ts.Record(id)
		if rec == nil {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case http.MethodPut:
		var rec models.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		rec.ID = id

		// Writes are keyed by ID: an unknown ID upserts.
		ts.mu.Lock()
		ts.records[id] = rec.Clone()
		ts.mu.Unlock()

		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		ts.mu.Lock()
		if rec, ok := ts.records[id]; ok {
			rec.MarkDeleted()
		}
		ts.mu.Unlock()

		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

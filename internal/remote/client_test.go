package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/config"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
	"github.com/gatherly/gathersync/internal/remote"
)

func newTestClient(t *testing.T, handler http.Handler) (*remote.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := remote.NewClient(&config.APIConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
		UserAgent:  "gathersync-test",
	}, events.NewTestLogger())

	return client, srv
}

func TestClientGetAll(t *testing.T) {
	var gotAuth, gotAgent string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")

		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_deleted"))

		_ = json.NewEncoder(w).Encode([]*models.Record{
			{ID: "evt-1", Name: "Book club", Kind: models.KindPoll},
			{ID: "evt-2", Name: "Dinner", Kind: models.KindInvite},
		})
	}))

	client.SetToken("secret-token")

	records, err := client.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "evt-1", records[0].ID)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "gathersync-test", gotAgent)
}

func TestClientGetNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestClientAdd(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var rec models.Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		rec.ID = "evt-served"

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(&rec)
	}))

	stored, err := client.Add(context.Background(), &models.Record{Name: "Trip", Kind: models.KindPoll})
	require.NoError(t, err)
	assert.Equal(t, "evt-served", stored.ID)
}

func TestClientDeleteIdempotent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		// Already deleted on the server.
		http.NotFound(w, r)
	}))

	assert.NoError(t, client.Delete(context.Background(), "evt-1"))
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := remote.NewClient(&config.APIConfig{
		BaseURL:    srv.URL,
		Timeout:    500 * time.Millisecond,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	}, events.NewTestLogger())
	srv.Close() // connection refused from here on

	_, err := client.GetAll(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsUnreachable(err))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]*models.Record{})
	}))

	_, err := client.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "validation failed", http.StatusUnprocessableEntity)
	}))

	err := client.Update(context.Background(), "evt-1", &models.Record{Name: "x"})
	require.Error(t, err)
	assert.True(t, models.IsRemoteRejected(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientRetryCeiling(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	_, err := client.GetAll(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsRemoteRejected(err))
	// Initial attempt plus MaxRetries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

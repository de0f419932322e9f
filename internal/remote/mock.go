package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/gatherly/gathersync/internal/models"
)

// MockRemote is an in-memory RemoteStore for tests. It can simulate an
// unreachable network or a rejecting server.
type MockRemote struct {
	mu      sync.Mutex
	records map[string]*models.Record

	// Unreachable simulates the network being down: every call fails with
	// an unreachable RemoteError.
	Unreachable bool

	// RejectWith simulates a server-side rejection status (e.g. 409, 500)
	// for every mutating call. Zero disables.
	RejectWith int

	// Calls counts remote operations by name.
	Calls map[string]int
}

// NewMockRemote creates an empty mock remote store.
func NewMockRemote() *MockRemote {
	return &MockRemote{
		records: make(map[string]*models.Record),
		Calls:   make(map[string]int),
	}
}

func (m *MockRemote) fail(op, id string) error {
	if m.Unreachable {
		return &models.RemoteError{Op: op, ID: id, Unreachable: true, Err: errors.New("network unreachable")}
	}
	if m.RejectWith != 0 {
		return &models.RemoteError{Op: op, ID: id, StatusCode: m.RejectWith, Err: errors.New("rejected")}
	}
	return nil
}

// GetAll returns all remote records, tombstones included.
func (m *MockRemote) GetAll(ctx context.Context) ([]*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["get_all"]++

	if err := m.fail("get_all", ""); err != nil {
		return nil, err
	}

	var records []*models.Record
	for _, rec := range m.records {
		records = append(records, rec.Clone())
	}
	return records, nil
}

// Get returns a record by ID.
func (m *MockRemote) Get(ctx context.Context, id string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["get"]++

	if err := m.fail("get", id); err != nil {
		return nil, err
	}

	rec, ok := m.records[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Add stores a record remotely.
func (m *MockRemote) Add(ctx context.Context, record *models.Record) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["add"]++

	if err := m.fail("add", record.ID); err != nil {
		return nil, err
	}

	rec := record.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records[rec.ID] = rec
	return rec.Clone(), nil
}

// Update replaces a record remotely. Like the real API, updating an unknown
// ID upserts: remote writes are keyed by ID and last write wins.
func (m *MockRemote) Update(ctx context.Context, id string, record *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["update"]++

	if err := m.fail("update", id); err != nil {
		return err
	}

	rec := record.Clone()
	rec.ID = id
	m.records[id] = rec
	return nil
}

// Delete tombstones a record remotely. Idempotent.
func (m *MockRemote) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["delete"]++

	if err := m.fail("delete", id); err != nil {
		return err
	}

	if rec, ok := m.records[id]; ok {
		rec.MarkDeleted()
	}
	return nil
}

// Seed inserts a record directly, bypassing failure simulation. Test helper.
func (m *MockRemote) Seed(record *models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record.Clone()
}

// Record returns the stored record by ID, or nil. Test helper.
func (m *MockRemote) Record(id string) *models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[id]; ok {
		return rec.Clone()
	}
	return nil
}

// Len reports the number of stored records, tombstones included.
func (m *MockRemote) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

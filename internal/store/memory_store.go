package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gathersync/internal/models"
)

// MemoryStore is an in-memory LocalStore used in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record

	// FailWith, when set, makes every mutation fail. Simulates a broken
	// backing medium (disk full, permission denied).
	FailWith error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.Record),
	}
}

// GetAll returns live records ordered by creation time.
func (m *MemoryStore) GetAll() ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*models.Record
	for _, rec := range m.records {
		if !rec.IsDeleted() {
			records = append(records, rec.Clone())
		}
	}
	sortRecords(records)
	return records, nil
}

// GetAllRaw returns every record including tombstones.
func (m *MemoryStore) GetAllRaw() ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*models.Record
	for _, rec := range m.records {
		records = append(records, rec.Clone())
	}
	sortRecords(records)
	return records, nil
}

// Get returns the record by ID.
func (m *MemoryStore) Get(id string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Add persists a new record with a generated ID and fresh timestamps.
func (m *MemoryStore) Add(record *models.Record) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, &models.StorageError{Op: "add", Err: m.FailWith}
	}

	rec := record.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if _, exists := m.records[rec.ID]; exists {
		return nil, models.ErrRecordExists
	}

	m.records[rec.ID] = rec
	return rec.Clone(), nil
}

// AddWithID persists the record exactly as given.
func (m *MemoryStore) AddWithID(record *models.Record) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return nil, &models.StorageError{Op: "adopt", Err: m.FailWith}
	}

	if _, exists := m.records[record.ID]; exists {
		return nil, models.ErrRecordExists
	}

	rec := record.Clone()
	m.records[rec.ID] = rec
	return rec.Clone(), nil
}

// Update fully replaces the record at id.
func (m *MemoryStore) Update(id string, record *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return &models.StorageError{Op: "update", ID: id, Err: m.FailWith}
	}

	if _, ok := m.records[id]; !ok {
		return models.ErrRecordNotFound
	}

	rec := record.Clone()
	rec.ID = id
	m.records[id] = rec
	return nil
}

// Delete tombstones the record. Idempotent.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return &models.StorageError{Op: "delete", ID: id, Err: m.FailWith}
	}

	rec, ok := m.records[id]
	if !ok {
		return models.ErrRecordNotFound
	}

	rec.MarkDeleted()
	return nil
}

// Reset purges all records.
func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*models.Record)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored records, tombstones included. Test helper.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func sortRecords(records []*models.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

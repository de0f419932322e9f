package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

// SQLiteStore implements LocalStore on SQLite. The full record is stored as
// JSON alongside indexed columns for the fields merge logic queries.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger

	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the local record database.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS records (
        id TEXT PRIMARY KEY,
        data TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL,
        deleted_at TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_records_live ON records(deleted_at) WHERE deleted_at IS NULL;
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// GetAll returns live records ordered by creation time.
func (s *SQLiteStore) GetAll() ([]*models.Record, error) {
	return s.query("SELECT data FROM records WHERE deleted_at IS NULL ORDER BY created_at, id")
}

// GetAllRaw returns every record, tombstones included.
func (s *SQLiteStore) GetAllRaw() ([]*models.Record, error) {
	return s.query("SELECT data FROM records ORDER BY created_at, id")
}

func (s *SQLiteStore) query(stmt string) ([]*models.Record, error) {
	rows, err := s.db.Query(stmt)
	if err != nil {
		return nil, &models.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, &models.StorageError{Op: "list", Err: err}
		}

		var rec models.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, &models.StorageError{Op: "list", Err: fmt.Errorf("corrupt record: %w", err)}
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list", Err: err}
	}

	return records, nil
}

// Get returns the record by ID, tombstoned or not.
func (s *SQLiteStore) Get(id string) (*models.Record, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM records WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get", ID: id, Err: err}
	}

	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &models.StorageError{Op: "get", ID: id, Err: fmt.Errorf("corrupt record: %w", err)}
	}

	return &rec, nil
}

// Add persists a new record, generating an ID and stamping timestamps.
func (s *SQLiteStore) Add(record *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.insert(rec); err != nil {
		return nil, err
	}

	s.logger.WithField("record_id", rec.ID).Debug("Added record")
	return rec, nil
}

// AddWithID persists the record exactly as given. The ID and timestamps come
// from the originating device.
func (s *SQLiteStore) AddWithID(record *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		return nil, &models.StorageError{Op: "adopt", Err: fmt.Errorf("record has no ID")}
	}

	rec := record.Clone()
	if err := s.insert(rec); err != nil {
		return nil, err
	}

	s.logger.WithField("record_id", rec.ID).Debug("Adopted record")
	return rec, nil
}

func (s *SQLiteStore) insert(rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &models.StorageError{Op: "add", ID: rec.ID, Err: err}
	}

	_, err = s.db.Exec(`
        INSERT INTO records (id, data, created_at, updated_at, deleted_at)
        VALUES (?, ?, ?, ?, ?)
    `, rec.ID, data, rec.CreatedAt, rec.UpdatedAt, deletedAtValue(rec))

	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrRecordExists
		}
		return &models.StorageError{Op: "add", ID: rec.ID, Err: err}
	}

	return nil
}

// Update fully replaces the record at id.
func (s *SQLiteStore) Update(id string, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record.Clone()
	rec.ID = id

	data, err := json.Marshal(rec)
	if err != nil {
		return &models.StorageError{Op: "update", ID: id, Err: err}
	}

	res, err := s.db.Exec(`
        UPDATE records SET data = ?, updated_at = ?, deleted_at = ?
        WHERE id = ?
    `, data, rec.UpdatedAt, deletedAtValue(rec), id)
	if err != nil {
		return &models.StorageError{Op: "update", ID: id, Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "update", ID: id, Err: err}
	}
	if affected == 0 {
		return models.ErrRecordNotFound
	}

	return nil
}

// Delete tombstones the record in place. Idempotent.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(id)
	if err != nil {
		return err
	}

	if rec.IsDeleted() {
		return nil
	}

	rec.MarkDeleted()

	data, err := json.Marshal(rec)
	if err != nil {
		return &models.StorageError{Op: "delete", ID: id, Err: err}
	}

	_, err = s.db.Exec(`
        UPDATE records SET data = ?, updated_at = ?, deleted_at = ?
        WHERE id = ?
    `, data, rec.UpdatedAt, *rec.DeletedAt, id)
	if err != nil {
		return &models.StorageError{Op: "delete", ID: id, Err: err}
	}

	s.logger.WithField("record_id", id).Debug("Tombstoned record")
	return nil
}

// Reset permanently purges all records.
func (s *SQLiteStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Warn("Purging all local records")

	if _, err := s.db.Exec("DELETE FROM records"); err != nil {
		return &models.StorageError{Op: "reset", Err: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func deletedAtValue(rec *models.Record) interface{} {
	if rec.DeletedAt == nil {
		return nil
	}
	return *rec.DeletedAt
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 reports constraint violations in the error text; matching
	// on it avoids depending on the driver's error types here.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}

package store

import (
	"context"

	"github.com/gatherly/gathersync/internal/models"
)

// LocalStore is the durable on-device record store. It is the only mutation
// path for local data; sync-adopted records go through the same interface.
// Records are soft-deleted: Delete sets a tombstone, and only Reset purges.
type LocalStore interface {
	// GetAll returns live records only, in stable order.
	GetAll() ([]*models.Record, error)

	// GetAllRaw returns every record including tombstones. Merge logic needs
	// this to tell "never existed" from "existed and was deleted".
	GetAllRaw() ([]*models.Record, error)

	// Get returns the record by ID, tombstoned or not.
	// Returns models.ErrRecordNotFound if absent.
	Get(id string) (*models.Record, error)

	// Add persists a new record, generating an ID if absent and stamping
	// CreatedAt/UpdatedAt. Returns the stored value.
	Add(record *models.Record) (*models.Record, error)

	// AddWithID persists the record exactly as given, keeping its ID and
	// timestamps. Used to adopt cloud-originated records. Returns
	// models.ErrRecordExists if the ID is already present.
	AddWithID(record *models.Record) (*models.Record, error)

	// Update fully replaces the record at id.
	// Returns models.ErrRecordNotFound if absent.
	Update(id string, record *models.Record) error

	// Delete tombstones the record. Deleting an already-tombstoned record
	// is a no-op.
	Delete(id string) error

	// Reset permanently purges all records, tombstones included. Only an
	// explicit user action reaches this.
	Reset() error

	// Close releases resources.
	Close() error
}

// RemoteStore is the cloud record store, reachable only when online and
// authenticated. Update and Delete are idempotent so queued mutations can be
// retried safely.
type RemoteStore interface {
	GetAll(ctx context.Context) ([]*models.Record, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	Add(ctx context.Context, record *models.Record) (*models.Record, error)
	Update(ctx context.Context, id string, record *models.Record) error
	Delete(ctx context.Context, id string) error
}

package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatherly/gathersync/internal/models"
)

func TestStorageError(t *testing.T) {
	base := errors.New("disk full")
	err := &models.StorageError{Op: "add", ID: "evt-1", Err: base}

	assert.Contains(t, err.Error(), "storage add evt-1")
	assert.True(t, errors.Is(err, base))
}

func TestRemoteErrorClassification(t *testing.T) {
	unreachable := &models.RemoteError{Op: "update", ID: "evt-1", Unreachable: true, Err: errors.New("dial tcp: timeout")}
	rejected := &models.RemoteError{Op: "update", ID: "evt-1", StatusCode: 409, Err: errors.New("conflict")}

	assert.True(t, models.IsUnreachable(unreachable))
	assert.False(t, models.IsUnreachable(rejected))
	assert.True(t, models.IsRemoteRejected(rejected))
	assert.False(t, models.IsRemoteRejected(unreachable))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("push record: %w", unreachable)
	assert.True(t, models.IsUnreachable(wrapped))

	assert.Contains(t, rejected.Error(), "HTTP 409")
	assert.Contains(t, unreachable.Error(), "unreachable")
}

func TestSyncStatus(t *testing.T) {
	assert.True(t, models.StatusSyncing.Valid())
	assert.False(t, models.SyncStatus("rebooting").Valid())
	assert.Equal(t, "offline", models.StatusOffline.String())
}

package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth    = "AUTH_ERROR"
	ErrCodeStorage = "STORAGE_ERROR"
	ErrCodeNetwork = "NETWORK_ERROR"
	ErrCodeRemote  = "REMOTE_ERROR"
	ErrCodeBackup  = "BACKUP_ERROR"
	ErrCodeConfig  = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrRecordExists     = errors.New("record already exists")
	ErrBackupNotFound   = errors.New("backup not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrEngineClosed     = errors.New("sync engine is closed")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// StorageError means a local persistence operation failed. It is always
// propagated synchronously to the caller of the mutating operation because
// the user's own edit may be lost.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RemoteError means a remote call failed. Unreachable covers network errors
// and timeouts (the call never completed); otherwise the remote rejected the
// request (4xx/5xx). Both feed the sync queue rather than the caller.
type RemoteError struct {
	Op          string
	ID          string
	StatusCode  int
	Unreachable bool
	Err         error
}

func (e *RemoteError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("remote %s %s: unreachable: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("remote %s %s: HTTP %d: %v", e.Op, e.ID, e.StatusCode, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err is a RemoteError caused by the remote
// being unreachable (network down, DNS failure, timeout).
func IsUnreachable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Unreachable
}

// IsRemoteRejected reports whether err is a RemoteError where the remote was
// reached but refused the request.
func IsRemoteRejected(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && !re.Unreachable
}

package models

// SyncStatus is the externally observable state of the sync engine. It is a
// non-hierarchical state machine driven exclusively by the engine and the
// connectivity monitor; it cycles for the lifetime of the session.
type SyncStatus string

const (
	// StatusIdle means no sync activity has happened since startup.
	StatusIdle SyncStatus = "idle"
	// StatusSyncing means a pull or push is in flight.
	StatusSyncing SyncStatus = "syncing"
	// StatusSynced means the last operation completed successfully.
	StatusSynced SyncStatus = "synced"
	// StatusError means the last operation failed, or a push batch had
	// at least one failure.
	StatusError SyncStatus = "error"
	// StatusOffline means the network is known to be unreachable.
	StatusOffline SyncStatus = "offline"
)

// String returns the status name.
func (s SyncStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status value.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusSyncing, StatusSynced, StatusError, StatusOffline:
		return true
	}
	return false
}

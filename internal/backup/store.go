package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

const snapshotExt = ".json"

// Snapshot is a full copy of the local record set at a point in time,
// tombstones included. Checksum covers the snapshot without the checksum
// field itself.
type Snapshot struct {
	ID        string           `json:"id"`
	Reason    string           `json:"reason"`
	CreatedAt time.Time        `json:"created_at"`
	Records   []*models.Record `json:"records"`
	Checksum  string           `json:"checksum,omitempty"`
}

// Info describes a stored snapshot without its record payload.
type Info struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	Records   int       `json:"records"`
	Path      string    `json:"path"`
}

// Store keeps JSON snapshots of the local record set on disk. It is a safety
// net against sync bugs: snapshots are written before risky operations and on
// demand, and can be restored wholesale.
type Store struct {
	dir    string
	logger *events.Logger

	mu sync.Mutex
}

// NewStore creates a backup store rooted at dir.
func NewStore(dir string, logger *events.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	return &Store{
		dir:    dir,
		logger: logger.WithField("component", "backup_store"),
	}, nil
}

// Create writes a new snapshot tagged with reason and returns its info.
func (s *Store) Create(reason string, records []*models.Record) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	snap := &Snapshot{
		ID:        fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), uuid.NewString()[:8]),
		Reason:    reason,
		CreatedAt: now,
		Records:   records,
	}

	checksum, err := checksumOf(snap)
	if err != nil {
		return nil, fmt.Errorf("checksum snapshot: %w", err)
	}
	snap.Checksum = checksum

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	path := s.snapshotPath(snap.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("rename snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"backup_id": snap.ID,
		"reason":    reason,
		"records":   len(records),
	}).Info("Backup created")

	return &Info{
		ID:        snap.ID,
		Reason:    reason,
		CreatedAt: snap.CreatedAt,
		Records:   len(records),
		Path:      path,
	}, nil
}

// Load reads a snapshot by ID, verifying its checksum.
// Returns models.ErrBackupNotFound if absent.
func (s *Store) Load(id string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.snapshotPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrBackupNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", id, err)
	}

	if snap.Checksum != "" {
		want := snap.Checksum
		snap.Checksum = ""
		got, err := checksumOf(&snap)
		if err != nil {
			return nil, fmt.Errorf("checksum snapshot: %w", err)
		}
		if got != want {
			return nil, fmt.Errorf("snapshot %s: checksum mismatch", id)
		}
		snap.Checksum = want
	}

	return &snap, nil
}

// List returns snapshot infos, newest first.
func (s *Store) List() ([]*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var infos []*Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}

		id := strings.TrimSuffix(name, snapshotExt)
		snap, err := s.loadLocked(id)
		if err != nil {
			s.logger.WithError(err).WithField("backup_id", id).Warn("Skipping unreadable backup")
			continue
		}

		infos = append(infos, &Info{
			ID:        snap.ID,
			Reason:    snap.Reason,
			CreatedAt: snap.CreatedAt,
			Records:   len(snap.Records),
			Path:      s.snapshotPath(id),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos, nil
}

// Delete removes a snapshot. Returns models.ErrBackupNotFound if absent.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.snapshotPath(id))
	if os.IsNotExist(err) {
		return models.ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	s.logger.WithField("backup_id", id).Info("Backup deleted")
	return nil
}

// Prune deletes all but the newest keep snapshots.
func (s *Store) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}

	infos, err := s.List()
	if err != nil {
		return err
	}
	if len(infos) <= keep {
		return nil
	}

	for _, info := range infos[keep:] {
		if err := s.Delete(info.ID); err != nil {
			return err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"kept":    keep,
		"deleted": len(infos) - keep,
	}).Info("Backups pruned")

	return nil
}

// loadLocked is Load without taking the lock. Caller holds s.mu.
func (s *Store) loadLocked(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrBackupNotFound
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) snapshotPath(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

func checksumOf(snap *Snapshot) (string, error) {
	plain := Snapshot{
		ID:        snap.ID,
		Reason:    snap.Reason,
		CreatedAt: snap.CreatedAt,
		Records:   snap.Records,
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

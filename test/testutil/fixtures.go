package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/gatherly/gathersync/internal/config"
	"github.com/gatherly/gathersync/internal/models"
)

// InviteEvent builds a valid fixed-date invitation.
func InviteEvent(name string) *models.Record {
	return &models.Record{
		Name: name,
		Kind: models.KindInvite,
		Date: "2026-10-03",
	}
}

// PollEvent builds a valid date-range poll.
func PollEvent(name string) *models.Record {
	return &models.Record{
		Name:     name,
		Kind:     models.KindPoll,
		DateFrom: "2026-10-10",
		DateTo:   "2026-10-25",
	}
}

// WithParticipants attaches participants to a record and returns it.
func WithParticipants(rec *models.Record, names ...string) *models.Record {
	for i, name := range names {
		rec.Participants = append(rec.Participants, models.Participant{
			ID:   fmt.Sprintf("%s-p%d", rec.Name, i),
			Name: name,
		})
	}
	return rec
}

// TestConfig builds a config wired to the test server, with all state under
// a per-test temp directory.
func TestConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = serverURL
	cfg.API.ProbeURL = serverURL + "/generate_204"
	cfg.API.Timeout = 5 * time.Second
	cfg.API.MaxRetries = 1
	cfg.API.RetryDelay = 10 * time.Millisecond
	cfg.Auth.TokenFile = filepath.Join(dir, "token.json")
	cfg.Storage.DataDir = dir
	cfg.Storage.DatabaseFile = filepath.Join(dir, "events.db")
	cfg.Storage.BackupDir = filepath.Join(dir, "backups")
	cfg.Sync.ProbeInterval = time.Hour
	cfg.Sync.WatchChanges = false
	cfg.Sync.DeviceName = "test-device"
	return cfg
}

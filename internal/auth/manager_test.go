package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/auth"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

func TestManagerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth", "token.json")
	m := auth.NewManager(path, events.NewTestLogger())

	_, err := m.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	require.NoError(t, m.Save(&auth.TokenInfo{Token: "secret", Device: "laptop"}))

	// A fresh manager reads it back from disk.
	m2 := auth.NewManager(path, events.NewTestLogger())
	info, err := m2.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", info.Token)
	assert.Equal(t, "laptop", info.Device)
	assert.False(t, info.CreatedAt.IsZero())

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), stat.Mode().Perm())
}

func TestManagerClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	m := auth.NewManager(path, events.NewTestLogger())

	require.NoError(t, m.Save(&auth.TokenInfo{Token: "secret"}))
	require.NoError(t, m.Clear())

	_, err := m.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)

	// Clearing an already-clean slate is fine.
	require.NoError(t, m.Clear())
}

func TestManagerRejectsEmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":""}`), 0600))

	m := auth.NewManager(path, events.NewTestLogger())
	_, err := m.Load()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
}

package backup_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/backup"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

func newStore(t *testing.T) *backup.Store {
	t.Helper()
	s, err := backup.NewStore(t.TempDir(), events.NewTestLogger())
	require.NoError(t, err)
	return s
}

func record(id, name string) *models.Record {
	now := time.Now().UTC()
	return &models.Record{
		ID:        id,
		Name:      name,
		Kind:      models.KindInvite,
		Date:      "2026-10-03",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndLoad(t *testing.T) {
	s := newStore(t)

	tombstoned := record("evt-2", "Cancelled")
	tombstoned.MarkDeleted()

	info, err := s.Create("manual", []*models.Record{record("evt-1", "Dinner"), tombstoned})
	require.NoError(t, err)
	assert.Equal(t, "manual", info.Reason)
	assert.Equal(t, 2, info.Records)
	assert.FileExists(t, info.Path)

	snap, err := s.Load(info.ID)
	require.NoError(t, err)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "Dinner", snap.Records[0].Name)
	assert.True(t, snap.Records[1].IsDeleted(), "tombstones are part of the snapshot")
}

func TestLoadMissing(t *testing.T) {
	s := newStore(t)

	_, err := s.Load("no-such-backup")
	assert.ErrorIs(t, err, models.ErrBackupNotFound)
}

func TestLoadDetectsCorruption(t *testing.T) {
	s := newStore(t)

	info, err := s.Create("manual", []*models.Record{record("evt-1", "Dinner")})
	require.NoError(t, err)

	data, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte("Dinner"), []byte("Supper"), 1)
	require.NoError(t, os.WriteFile(info.Path, tampered, 0600))

	_, err = s.Load(info.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)

	first, err := s.Create("auto", []*models.Record{record("evt-1", "A")})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := s.Create("manual", nil)
	require.NoError(t, err)

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, second.ID, infos[0].ID)
	assert.Equal(t, first.ID, infos[1].ID)
	assert.Zero(t, infos[0].Records)
	assert.Equal(t, 1, infos[1].Records)
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := backup.NewStore(dir, events.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600))

	_, err = s.Create("manual", nil)
	require.NoError(t, err)

	infos, err := s.List()
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestDelete(t *testing.T) {
	s := newStore(t)

	info, err := s.Create("manual", nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(info.ID))
	assert.ErrorIs(t, s.Delete(info.ID), models.ErrBackupNotFound)

	infos, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestPruneKeepsNewest(t *testing.T) {
	s := newStore(t)

	var ids []string
	for i := 0; i < 5; i++ {
		info, err := s.Create("auto", nil)
		require.NoError(t, err)
		ids = append(ids, info.ID)
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, s.Prune(2))

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, ids[4], infos[0].ID)
	assert.Equal(t, ids[3], infos[1].ID)

	// Pruning below the count is a no-op.
	require.NoError(t, s.Prune(10))
	infos, err = s.List()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

//go:build integration
// +build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/client"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
	"github.com/gatherly/gathersync/test/testutil"
)

const waitFor = 5 * time.Second

func newDevice(t *testing.T, server *testutil.TestServer, token string) *client.Client {
	t.Helper()

	cfg := testutil.TestConfig(t, server.URL)
	app, err := client.New(cfg, events.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NoError(t, app.Login(context.Background(), token))
	return app
}

func TestTwoDevicesConvergeOverRealAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := testutil.NewTestServer("token-a", "token-b")
	defer server.Close()

	phone := newDevice(t, server, "token-a")
	laptop := newDevice(t, server, "token-b")

	// Phone creates an event; the background push delivers it.
	rec, err := phone.Engine.CreateRecord(testutil.InviteEvent("Team dinner"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return server.Record(rec.ID) != nil
	}, waitFor, 20*time.Millisecond)

	// Laptop syncs and sees it.
	require.NoError(t, laptop.Engine.SyncAll(context.Background()))
	got, err := laptop.Engine.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Team dinner", got.Name)

	// Laptop edits; phone picks the edit up on its next sync.
	edit := testutil.InviteEvent("Team dinner (moved)")
	_, err = laptop.Engine.UpdateRecord(rec.ID, edit)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		stored := server.Record(rec.ID)
		return stored != nil && stored.Name == "Team dinner (moved)"
	}, waitFor, 20*time.Millisecond)

	require.NoError(t, phone.Engine.SyncAll(context.Background()))
	got, err = phone.Engine.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Team dinner (moved)", got.Name)

	// Phone deletes; the laptop's next sync tombstones it there too.
	require.NoError(t, phone.Engine.DeleteRecord(rec.ID))
	require.Eventually(t, func() bool {
		stored := server.Record(rec.ID)
		return stored != nil && stored.IsDeleted()
	}, waitFor, 20*time.Millisecond)

	require.NoError(t, laptop.Engine.SyncAll(context.Background()))
	_, err = laptop.Engine.Get(rec.ID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestOfflineEditsSurviveUntilReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := testutil.NewTestServer("token-a")
	defer server.Close()

	app := newDevice(t, server, "token-a")

	// The device loses connectivity.
	app.Monitor.SetOnline(false)

	rec, err := app.Engine.CreateRecord(testutil.PollEvent("Hiking weekend"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, app.Engine.Status())
	assert.Nil(t, server.Record(rec.ID))
	assert.Equal(t, 1, app.Engine.QueueLen())

	// Connectivity returns; the queue drains without an explicit sync.
	app.Monitor.SetOnline(true)
	require.Eventually(t, func() bool {
		return server.Record(rec.ID) != nil
	}, waitFor, 20*time.Millisecond)
	assert.Zero(t, app.Engine.QueueLen())
}

func TestServerRejectionLeavesQueueIntact(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := testutil.NewTestServer("token-a")
	defer server.Close()

	app := newDevice(t, server, "token-a")
	server.SetFailing(true)

	rec, err := app.Engine.CreateRecord(testutil.InviteEvent("Doomed for now"))
	require.NoError(t, err, "server failures never surface to the editing user")

	require.Eventually(t, func() bool {
		return app.Engine.QueueLen() == 1
	}, waitFor, 20*time.Millisecond)

	server.SetFailing(false)
	app.Engine.DrainQueue(context.Background())

	assert.NotNil(t, server.Record(rec.ID))
	assert.Zero(t, app.Engine.QueueLen())
}

func TestRestoreRoundTripOverRealAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := testutil.NewTestServer("token-a")
	defer server.Close()

	app := newDevice(t, server, "token-a")

	rec, err := app.Engine.CreateRecord(testutil.WithParticipants(testutil.InviteEvent("Reunion"), "Alice", "Bob"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return server.Record(rec.ID) != nil
	}, waitFor, 20*time.Millisecond)

	info, err := app.Engine.Backup("manual")
	require.NoError(t, err)

	require.NoError(t, app.Engine.DeleteRecord(rec.ID))
	require.Eventually(t, func() bool {
		stored := server.Record(rec.ID)
		return stored != nil && stored.IsDeleted()
	}, waitFor, 20*time.Millisecond)

	require.NoError(t, app.Engine.RestoreBackup(context.Background(), info.ID))

	got, err := app.Engine.Get(rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.LiveParticipants(), 2)

	stored := server.Record(rec.ID)
	require.NotNil(t, stored)
	assert.False(t, stored.IsDeleted(), "restore pushes the record back to the cloud")
}

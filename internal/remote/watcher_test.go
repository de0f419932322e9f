package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/remote"
)

func TestWatcherReceivesNotices(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotToken := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/events/watch", r.URL.Path)
		gotToken <- r.Header.Get("Authorization")

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_ = conn.WriteJSON(remote.ChangeNotice{RecordID: "evt-1", ChangedAt: time.Now().UTC()})
		_ = conn.WriteJSON(remote.ChangeNotice{RecordID: "evt-2", ChangedAt: time.Now().UTC()})

		// Keep the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	watcher := remote.NewWatcher(srv.URL, "watch-token", events.NewTestLogger())
	require.NoError(t, watcher.Connect(context.Background()))
	defer watcher.Close()

	assert.Equal(t, "Bearer watch-token", <-gotToken)

	var ids []string
	timeout := time.After(2 * time.Second)
	for len(ids) < 2 {
		select {
		case notice := <-watcher.Notices():
			ids = append(ids, notice.RecordID)
		case <-timeout:
			t.Fatal("timed out waiting for change notices")
		}
	}

	assert.Equal(t, []string{"evt-1", "evt-2"}, ids)
}

func TestWatcherCloseEndsNotices(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	watcher := remote.NewWatcher(srv.URL, "", events.NewTestLogger())
	require.NoError(t, watcher.Connect(context.Background()))

	require.NoError(t, watcher.Close())

	select {
	case _, open := <-watcher.Notices():
		assert.False(t, open, "notices channel should close")
	case <-time.After(2 * time.Second):
		t.Fatal("notices channel did not close")
	}
}

func TestWatcherConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no feed here", http.StatusForbidden)
	}))
	defer srv.Close()

	watcher := remote.NewWatcher(srv.URL, "", events.NewTestLogger())
	err := watcher.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

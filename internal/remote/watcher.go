package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gatherly/gathersync/internal/events"
)

// ChangeNotice tells a device that a record changed on another replica. It
// carries no payload; the engine reacts by running a pull-merge, which is
// safe to trigger spuriously.
type ChangeNotice struct {
	RecordID  string    `json:"record_id"`
	ChangedAt time.Time `json:"changed_at"`
	Device    string    `json:"device,omitempty"`
}

// Watcher maintains a websocket subscription to the cloud change feed.
type Watcher struct {
	url    string
	token  string
	logger *events.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	notices chan ChangeNotice
	done    chan struct{}

	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewWatcher creates a change-feed watcher. baseURL is the HTTP API base;
// it is converted to the ws(s) scheme.
func NewWatcher(baseURL, token string, logger *events.Logger) *Watcher {
	wsURL := baseURL
	if strings.HasPrefix(wsURL, "http") {
		wsURL = "ws" + wsURL[4:]
	}

	return &Watcher{
		url:          wsURL + eventsPath + "/watch",
		token:        token,
		logger:       logger.WithField("component", "change_watcher"),
		notices:      make(chan ChangeNotice, 100),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

// Connect establishes the websocket connection and starts the read loop.
func (w *Watcher) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return fmt.Errorf("already connected")
	}

	w.logger.WithField("url", w.url).Info("Connecting to change feed")

	headers := http.Header{}
	if w.token != "" {
		headers.Set("Authorization", "Bearer "+w.token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, w.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("change feed connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("change feed connect failed: %w", err)
	}

	w.conn = conn

	go w.readLoop()
	go w.pingLoop()

	return nil
}

// Notices returns the change notification channel. It is closed when the
// connection drops or the watcher is closed.
func (w *Watcher) Notices() <-chan ChangeNotice {
	return w.notices
}

// Close shuts down the subscription.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err := w.conn.Close()
		w.conn = nil
		return err
	}

	return nil
}

func (w *Watcher) readLoop() {
	defer func() {
		_ = w.Close()
		close(w.notices)
	}()

	for {
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(w.pongTimeout + w.pingInterval))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(w.pongTimeout + w.pingInterval))
			return nil
		})

		var notice ChangeNotice
		if err := conn.ReadJSON(&notice); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				w.logger.WithError(err).Warn("Change feed read error")
			}
			return
		}

		w.logger.WithField("record_id", notice.RecordID).Debug("Change notice received")

		select {
		case w.notices <- notice:
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) pingLoop() {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()

			if conn == nil {
				return
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				w.logger.WithError(err).Debug("Ping failed")
				return
			}

		case <-w.done:
			return
		}
	}
}

package lifecycle

import (
	"sync"

	"github.com/gatherly/gathersync/internal/events"
)

// Monitor turns platform connectivity and app-lifecycle signals into
// subscriptions the sync engine can react to. It is purely an event source:
// no callback blocks inside the monitor, and nothing here performs I/O.
type Monitor struct {
	logger *events.Logger

	mu       sync.Mutex
	online   bool
	closed   bool
	nextID   int
	connSubs map[int]func(bool)
	fgSubs   map[int]func()
}

// NewMonitor creates a monitor. It starts offline; the first probe or
// platform signal moves it online.
func NewMonitor(logger *events.Logger) *Monitor {
	return &Monitor{
		logger:   logger.WithField("component", "lifecycle_monitor"),
		connSubs: make(map[int]func(bool)),
		fgSubs:   make(map[int]func()),
	}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a connectivity-change callback, fired on every
// transition. The returned function unsubscribes; it is safe to call more
// than once.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.connSubs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.connSubs, id)
	}
}

// SubscribeForeground registers an app-became-visible callback.
func (m *Monitor) SubscribeForeground(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.fgSubs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.fgSubs, id)
	}
}

// SetOnline records the connectivity state, notifying subscribers only on
// an actual transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.closed || m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]func(bool), 0, len(m.connSubs))
	for _, fn := range m.connSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.WithField("online", online).Info("Connectivity changed")

	for _, fn := range subs {
		fn(online)
	}
}

// NotifyForeground signals that the application became visible again.
func (m *Monitor) NotifyForeground() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	subs := make([]func(), 0, len(m.fgSubs))
	for _, fn := range m.fgSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Debug("Application entered foreground")

	for _, fn := range subs {
		fn()
	}
}

// Close detaches every listener. Further signals are dropped.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.connSubs = make(map[int]func(bool))
	m.fgSubs = make(map[int]func())
}

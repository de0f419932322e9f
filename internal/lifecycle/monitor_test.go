package lifecycle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/lifecycle"
)

func TestMonitorFiresOnTransitionsOnly(t *testing.T) {
	m := lifecycle.NewMonitor(events.NewTestLogger())

	var transitions []bool
	m.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	m.SetOnline(true)
	m.SetOnline(true) // no transition
	m.SetOnline(false)
	m.SetOnline(false) // no transition
	m.SetOnline(true)

	assert.Equal(t, []bool{true, false, true}, transitions)
	assert.True(t, m.Online())
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := lifecycle.NewMonitor(events.NewTestLogger())

	var count int
	unsubscribe := m.Subscribe(func(bool) { count++ })

	m.SetOnline(true)
	unsubscribe()
	m.SetOnline(false)

	assert.Equal(t, 1, count)

	// Unsubscribing twice is safe.
	unsubscribe()
}

func TestMonitorForeground(t *testing.T) {
	m := lifecycle.NewMonitor(events.NewTestLogger())

	var fired int
	unsubscribe := m.SubscribeForeground(func() { fired++ })

	m.NotifyForeground()
	m.NotifyForeground()
	assert.Equal(t, 2, fired)

	unsubscribe()
	m.NotifyForeground()
	assert.Equal(t, 2, fired)
}

func TestMonitorCloseDropsSignals(t *testing.T) {
	m := lifecycle.NewMonitor(events.NewTestLogger())

	var count int
	m.Subscribe(func(bool) { count++ })
	m.SubscribeForeground(func() { count++ })

	m.Close()
	m.SetOnline(true)
	m.NotifyForeground()

	assert.Zero(t, count)
	assert.False(t, m.Online())
}

func TestProberTreatsCaptivePortalAsOffline(t *testing.T) {
	monitor := lifecycle.NewMonitor(events.NewTestLogger())

	// Captive portal: connected, but the probe is answered with a login page.
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>hotel wifi login</html>"))
	}))
	defer portal.Close()

	prober := lifecycle.NewProber(portal.URL, time.Minute, monitor, events.NewTestLogger())
	assert.False(t, prober.Check(context.Background()))
	assert.False(t, monitor.Online())
}

func TestProberOnline(t *testing.T) {
	monitor := lifecycle.NewMonitor(events.NewTestLogger())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	prober := lifecycle.NewProber(srv.URL, time.Minute, monitor, events.NewTestLogger())

	require.True(t, prober.Check(context.Background()))
	assert.True(t, monitor.Online())

	// Server goes away: next probe flips the monitor offline.
	srv.Close()
	assert.False(t, prober.Check(context.Background()))
	assert.False(t, monitor.Online())
}

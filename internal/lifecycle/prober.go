package lifecycle

import (
	"context"
	"net/http"
	"time"

	"github.com/gatherly/gathersync/internal/events"
)

// Prober checks internet reachability and feeds the result to a Monitor.
// A 204 from the probe endpoint means genuinely online; anything else —
// including a 200, which is what captive portals answer — counts as offline.
type Prober struct {
	client   *http.Client
	url      string
	monitor  *Monitor
	interval time.Duration
	logger   *events.Logger

	stop chan struct{}
}

// NewProber creates a prober against the given 204 endpoint.
func NewProber(probeURL string, interval time.Duration, monitor *Monitor, logger *events.Logger) *Prober {
	return &Prober{
		client:   &http.Client{Timeout: 5 * time.Second},
		url:      probeURL,
		monitor:  monitor,
		interval: interval,
		logger:   logger.WithField("component", "prober"),
		stop:     make(chan struct{}),
	}
}

// Check probes once and updates the monitor. Returns the probed state.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.probe(ctx)
	p.monitor.SetOnline(online)
	return online
}

func (p *Prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).Debug("Probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusNoContent
}

// Run probes on the configured interval until Stop or ctx cancellation.
// Probes are reachability checks only; they never trigger data sync by
// themselves.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)

	for {
		select {
		case <-ticker.C:
			p.Check(ctx)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop terminates a running Run loop.
func (p *Prober) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/gatherly/gathersync/internal/auth"
	"github.com/gatherly/gathersync/internal/backup"
	"github.com/gatherly/gathersync/internal/config"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/lifecycle"
	"github.com/gatherly/gathersync/internal/models"
	"github.com/gatherly/gathersync/internal/remote"
	"github.com/gatherly/gathersync/internal/store"
	syncpkg "github.com/gatherly/gathersync/internal/sync"
)

// watchRetryDelay spaces out change-feed reconnect attempts.
const watchRetryDelay = 30 * time.Second

// Client wires the local store, remote API, lifecycle monitor, and sync
// engine into one object the CLI (or an embedding app) talks to.
type Client struct {
	Engine  *syncpkg.Engine
	Monitor *lifecycle.Monitor
	Backups *backup.Store

	cfg    *config.Config
	logger *events.Logger
	local  store.LocalStore
	remote *remote.Client
	auth   *auth.Manager
	prober *lifecycle.Prober

	mu      gosync.Mutex
	watcher *remote.Watcher
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// New builds a client from configuration. A token stored from a previous
// login is picked up automatically.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	local, err := store.NewSQLiteStore(cfg.Storage.DatabaseFile, logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	backups, err := backup.NewStore(cfg.Storage.BackupDir, logger)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	remoteClient := remote.NewClient(&cfg.API, logger)
	monitor := lifecycle.NewMonitor(logger)
	prober := lifecycle.NewProber(cfg.API.ProbeURL, cfg.Sync.ProbeInterval, monitor, logger)
	engine := syncpkg.NewEngine(local, remoteClient, monitor, backups, cfg.Sync.RetryCeiling, logger)

	c := &Client{
		Engine:  engine,
		Monitor: monitor,
		Backups: backups,
		cfg:     cfg,
		logger:  logger.WithField("component", "client"),
		local:   local,
		remote:  remoteClient,
		auth:    auth.NewManager(cfg.Auth.TokenFile, logger),
		prober:  prober,
	}

	// The monitor starts offline, so opening the auth gate here cannot kick
	// off a sync before Start.
	if info, err := c.auth.Load(); err == nil {
		remoteClient.SetToken(info.Token)
		engine.SetAuthenticated(true)
	} else if !errors.Is(err, models.ErrNotAuthenticated) {
		c.logger.WithError(err).Warn("Ignoring unreadable token file")
	}

	return c, nil
}

// Start launches the connectivity prober and, if enabled and logged in, the
// change-feed watcher. Background work stops when Close is called.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.prober.Run(ctx)
	}()

	if c.cfg.Sync.WatchChanges && c.Engine.Authenticated() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.watchChanges(ctx)
		}()
	}
}

// watchChanges keeps a change-feed connection alive and pulls on every
// notice. A lost connection is retried for as long as the client runs.
func (c *Client) watchChanges(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if c.Monitor.Online() {
			c.watchOnce(ctx)
		}

		select {
		case <-time.After(watchRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) watchOnce(ctx context.Context) {
	watcher := remote.NewWatcher(c.cfg.API.BaseURL, c.remote.Token(), c.logger)
	if err := watcher.Connect(ctx); err != nil {
		c.logger.WithError(err).Debug("Change feed connect failed")
		return
	}

	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.watcher = nil
		c.mu.Unlock()
		_ = watcher.Close()
	}()

	for {
		select {
		case notice, ok := <-watcher.Notices():
			if !ok {
				return
			}
			c.logger.WithField("record_id", notice.RecordID).Debug("Change notice received")
			if err := c.Engine.PullFromCloud(ctx); err != nil && !errors.Is(err, models.ErrSyncInProgress) {
				c.logger.WithError(err).Warn("Change-feed pull failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Login verifies the token against the API, persists it, and opens the sync
// gate. The verification doubles as the first pull of remote data.
func (c *Client) Login(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrNotAuthenticated
	}

	c.remote.SetToken(token)
	if _, err := c.remote.GetAll(ctx); err != nil {
		c.remote.SetToken("")
		return fmt.Errorf("verify token: %w", err)
	}

	if err := c.auth.Save(&auth.TokenInfo{Token: token, Device: c.cfg.Sync.DeviceName}); err != nil {
		return err
	}

	c.Monitor.SetOnline(true)
	c.Engine.SetAuthenticated(true)
	return nil
}

// Logout forgets the stored token and closes the sync gate. Local data
// stays on the device.
func (c *Client) Logout() error {
	c.Engine.SetAuthenticated(false)
	c.remote.SetToken("")
	return c.auth.Clear()
}

// CheckConnectivity probes the network once and feeds the result to the
// monitor. One-shot callers use this instead of the prober loop.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	return c.prober.Check(ctx)
}

// Authenticated reports whether a token is loaded.
func (c *Client) Authenticated() bool {
	return c.Engine.Authenticated()
}

// Close stops background work and releases every resource.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	watcher := c.watcher
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	c.prober.Stop()
	c.wg.Wait()

	err := c.Engine.Close()
	c.Monitor.Close()
	if cerr := c.local.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

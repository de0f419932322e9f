package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

// TokenInfo is the persisted API credential.
type TokenInfo struct {
	Token     string    `json:"token"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager persists the API token on disk. The token file is the single
// source of truth for "is this device logged in".
type Manager struct {
	path   string
	logger *events.Logger

	token *TokenInfo
}

// NewManager creates a token manager backed by the given file.
func NewManager(path string, logger *events.Logger) *Manager {
	return &Manager{
		path:   path,
		logger: logger.WithField("component", "auth"),
	}
}

// Load returns the stored token, reading the file on first use.
// Returns models.ErrNotAuthenticated when no token is stored.
func (m *Manager) Load() (*TokenInfo, error) {
	if m.token != nil {
		return m.token, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var info TokenInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if info.Token == "" {
		return nil, models.ErrNotAuthenticated
	}

	m.token = &info
	return m.token, nil
}

// Save stores the token with owner-only permissions.
func (m *Manager) Save(info *TokenInfo) error {
	if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	m.token = info
	m.logger.WithField("device", info.Device).Info("Token saved")
	return nil
}

// Clear forgets the token and removes the file.
func (m *Manager) Clear() error {
	m.token = nil

	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}

	m.logger.Info("Token cleared")
	return nil
}

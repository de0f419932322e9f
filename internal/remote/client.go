package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/gatherly/gathersync/internal/config"
	"github.com/gatherly/gathersync/internal/events"
	"github.com/gatherly/gathersync/internal/models"
)

const eventsPath = "/api/v1/events"

// Client implements store.RemoteStore over the Gatherly REST API.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *events.Logger

	mu    sync.RWMutex
	token string

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a remote store client.
func NewClient(cfg *config.APIConfig, logger *events.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		logger:     logger.WithField("component", "remote_client"),
	}
}

// SetToken sets the bearer token used on every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// GetAll fetches all records from the cloud store, tombstones included.
// Merge logic needs remote tombstones to propagate deletes to this device.
func (c *Client) GetAll(ctx context.Context) ([]*models.Record, error) {
	var records []*models.Record
	if err := c.do(ctx, http.MethodGet, eventsPath+"?include_deleted=true", nil, &records); err != nil {
		return nil, fmt.Errorf("list remote records: %w", err)
	}
	return records, nil
}

// Get fetches a single record by ID.
func (c *Client) Get(ctx context.Context, id string) (*models.Record, error) {
	var rec models.Record
	err := c.do(ctx, http.MethodGet, eventsPath+"/"+id, nil, &rec)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get remote record: %w", err)
	}
	return &rec, nil
}

// Add creates a record in the cloud store.
func (c *Client) Add(ctx context.Context, record *models.Record) (*models.Record, error) {
	var stored models.Record
	if err := c.do(ctx, http.MethodPost, eventsPath, record, &stored); err != nil {
		return nil, fmt.Errorf("create remote record: %w", err)
	}
	return &stored, nil
}

// Update replaces a record in the cloud store. Idempotent: replaying the
// same update is harmless because the payload carries the full record.
func (c *Client) Update(ctx context.Context, id string, record *models.Record) error {
	if err := c.do(ctx, http.MethodPut, eventsPath+"/"+id, record, nil); err != nil {
		return fmt.Errorf("update remote record: %w", err)
	}
	return nil
}

// Delete tombstones a record in the cloud store. A 404 means another device
// already propagated the delete, which is success for our purposes.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, eventsPath+"/"+id, nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete remote record: %w", err)
	}
	return nil
}

// do executes a request with retry, classifying failures into unreachable
// (network) and rejected (HTTP status) remote errors.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	url := c.baseURL + path

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	}).Debug("Sending request")

	var respBody []byte
	err := c.retry(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := c.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return &models.RemoteError{Op: method, Unreachable: true, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &models.RemoteError{Op: method, Unreachable: true, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &models.RemoteError{
				Op:         method,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s", truncate(data, 200)),
			}
		}

		respBody = data
		return nil
	})
	if err != nil {
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}

// retry executes fn with exponential backoff on transient failures.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return &models.RemoteError{Op: "retry", Unreachable: true, Err: ctx.Err()}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	if models.IsUnreachable(err) {
		return true
	}
	var re *models.RemoteError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusTooManyRequests ||
			(re.StatusCode >= 500 && re.StatusCode < 600)
	}
	return false
}

func isStatus(err error, status int) bool {
	var re *models.RemoteError
	return errors.As(err, &re) && re.StatusCode == status
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}

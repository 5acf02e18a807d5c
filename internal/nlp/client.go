package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

// Default timeouts for ML service operations.
const (
	defaultParseTimeout   = 30 * time.Second
	defaultHealthTimeout  = 5 * time.Second
	defaultHealthInterval = 60 * time.Second

	// maxResponseBytes caps how much of a parse response is read.
	maxResponseBytes = 1 << 20
)

// MLClient talks to the remote command parser over HTTP.
//
// Health is cached: Healthy only performs a new GET /healthz once the
// previous result is older than the configured interval. Timeouts and
// connection failures during Parse mark the service unavailable until the
// next health check.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type MLClient struct {
	url            string
	httpClient     *http.Client
	healthTimeout  time.Duration
	healthInterval time.Duration
	now            func() time.Time

	mu        sync.Mutex
	checked   bool
	healthy   bool
	lastCheck time.Time
}

// NewMLClient creates a client for the configured service URL.
//
// Parameters:
//   - cfg: ML section of config.yaml (timeouts in seconds)
//
// Returns:
//   - *MLClient: Client ready for use; no request is made until Parse or Healthy
func NewMLClient(cfg config.MLConfig) *MLClient {
	timeout := orDefault(config.Seconds(cfg.Timeout), defaultParseTimeout)
	return &MLClient{
		url:            strings.TrimRight(cfg.URL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		healthTimeout:  orDefault(config.Seconds(cfg.HealthTimeout), defaultHealthTimeout),
		healthInterval: orDefault(config.Seconds(cfg.HealthInterval), defaultHealthInterval),
		now:            time.Now,
	}
}

// URL returns the service base URL.
func (c *MLClient) URL() string { return c.url }

// Healthy returns the cached health state, re-checking when it is stale.
func (c *MLClient) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	if c.checked && c.now().Sub(c.lastCheck) < c.healthInterval {
		h := c.healthy
		c.mu.Unlock()
		return h
	}
	c.mu.Unlock()

	return c.HealthCheck(ctx) == nil
}

// HealthCheck performs GET /healthz and records the outcome.
//
// Returns:
//   - error: nil if the service answered 200, the failure otherwise
func (c *MLClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	err := c.healthCheck(ctx)

	c.mu.Lock()
	c.checked = true
	c.healthy = err == nil
	c.lastCheck = c.now()
	c.mu.Unlock()

	return err
}

func (c *MLClient) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("ml health check: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ml health check: %w", classify(err))
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml health check: %w", &StatusError{Code: resp.StatusCode})
	}
	return nil
}

// Parse sends text to POST /parse and returns the decoded JSON object.
//
// Returns:
//   - map[string]any: The raw response object
//   - error: ErrTimeout, ErrConnection, a *StatusError or ErrMalformedResponse
func (c *MLClient) Parse(ctx context.Context, text string) (map[string]any, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encoding parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classify(err)
		c.markUnavailable()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var out map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformedResponse)
	}
	return out, nil
}

// markUnavailable records a failed call so the next Healthy is false until
// the health interval elapses.
func (c *MLClient) markUnavailable() {
	c.mu.Lock()
	c.checked = true
	c.healthy = false
	c.lastCheck = c.now()
	c.mu.Unlock()
}

// classify maps transport errors onto ErrTimeout or ErrConnection.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

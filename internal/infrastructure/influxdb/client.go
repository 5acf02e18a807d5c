package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records the state history of one vehicle.
//
// Writes go through the library's non-blocking batch API; failures arrive
// asynchronously on the SetOnError callback. Every point is tagged with
// the vehicle ID the client was connected for.
//
// All methods are safe for concurrent use.
type Client struct {
	influx    influxdb2.Client
	writeAPI  api.WriteAPI
	vehicleID string

	closed    atomic.Bool
	closeOnce sync.Once
	written   atomic.Uint64
	failed    atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and opens a batching writer on cfg.Bucket.
//
// Parameters:
//   - cfg: influxdb section of config.yaml
//   - vehicleID: Value of the vehicle_id tag on every point
//
// Returns:
//   - *Client: Ready client; Close flushes pending points
//   - error: ErrDisabled, or wraps ErrConnectionFailed
func Connect(cfg config.InfluxDBConfig, vehicleID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize(cfg)).
		SetFlushInterval(flushIntervalMillis(cfg))
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		influx:    influx,
		writeAPI:  influx.WriteAPI(cfg.Org, cfg.Bucket),
		vehicleID: vehicleID,
	}
	go c.drainErrors(c.writeAPI.Errors())
	return c, nil
}

func batchSize(cfg config.InfluxDBConfig) uint {
	if cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return uint(cfg.BatchSize) //nolint:gosec // Positive, checked above
}

func flushIntervalMillis(cfg config.InfluxDBConfig) uint {
	d := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		d = config.Seconds(cfg.FlushInterval)
	}
	return uint(d.Milliseconds()) //nolint:gosec // Positive by construction
}

func ping(ctx context.Context, influx influxdb2.Client) error {
	healthy, err := influx.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.failed.Add(1)
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(cb func(err error)) {
	c.mu.Lock()
	c.onError = cb
	c.mu.Unlock()
}

// HealthCheck pings the server, bounded by pingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports false once Close has been called.
func (c *Client) IsConnected() bool {
	return c.influx != nil && !c.closed.Load()
}

// Written returns how many points were queued for writing.
func (c *Client) Written() uint64 { return c.written.Load() }

// Failed returns how many batch writes the server rejected.
func (c *Client) Failed() uint64 { return c.failed.Load() }

// Close flushes pending points and releases the client. Later writes are
// dropped. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	if c.influx == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeAPI.Flush()
		c.influx.Close()
	})
	return nil
}

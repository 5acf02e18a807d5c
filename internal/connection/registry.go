package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Default timings.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultSendBuffer        = 64
)

var (
	// ErrNotFound is returned for an unknown connection ID.
	ErrNotFound = errors.New("connection not found")

	// ErrClosed is returned when writing to a disconnected connection.
	ErrClosed = errors.New("connection closed")

	// ErrWriteTimeout is returned when a frame is not written in time.
	ErrWriteTimeout = errors.New("write timed out")
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives registry counters, typically for metrics.
type Observer interface {
	ConnectionsChanged(n int)
	DeliveryFailed(n int)
}

type noopObserver struct{}

func (noopObserver) ConnectionsChanged(int) {}
func (noopObserver) DeliveryFailed(int)     {}

// envelope is one queued frame and the channel its write result goes to.
type envelope struct {
	data   []byte
	result chan error
}

// Connection is a registered client.
//
// State machine: Connecting → Connected → Disconnected (terminal). A
// reconnecting client is a new Connection with a new ID.
type Connection struct {
	id          string
	conn        Conn
	connectedAt time.Time
	remoteAddr  string

	outbox    chan envelope
	done      chan struct{}
	closeOnce sync.Once
	sent      atomic.Uint64
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// ConnectedAt returns when the connection was registered.
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// Done is closed once the connection has been disconnected.
func (c *Connection) Done() <-chan struct{} { return c.done }

// writer owns every data write to the socket. Frames are written in
// queue order, so per-connection ordering matches call order.
func (c *Connection) writer(timeout time.Duration) {
	for {
		select {
		case <-c.done:
			return
		case env := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err := c.conn.WriteMessage(ctx, env.data)
			cancel()
			if err == nil {
				c.sent.Add(1)
			}
			env.result <- err
		}
	}
}

// enqueue places data on the outbox without waiting for the write.
func (c *Connection) enqueue(ctx context.Context, data []byte, timeout time.Duration) (chan error, error) {
	env := envelope{data: data, result: make(chan error, 1)}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.outbox <- env:
		return env.result, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("outbox full: %w", ErrWriteTimeout)
	}
}

// deliver queues data and waits for the writer to report the outcome.
func (c *Connection) deliver(ctx context.Context, data []byte, timeout time.Duration) error {
	result, err := c.enqueue(ctx, data, timeout)
	if err != nil {
		return err
	}
	return awaitResult(ctx, c, result, timeout)
}

func awaitResult(ctx context.Context, c *Connection, result chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		//nolint:errcheck // Best-effort close; the peer may already be gone
		c.conn.Close()
	})
}

// Info describes one connection in Stats.
type Info struct {
	ID           string    `json:"connection_id"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	MessagesSent uint64    `json:"messages_sent"`
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	TotalConnections int    `json:"total_connections"`
	HeartbeatRunning bool   `json:"heartbeat_running"`
	Connections      []Info `json:"connections"`
}

// Registry tracks live client connections and fans messages out to them.
//
// One failing connection never affects delivery to the others or the
// caller: failed connections are collected during a pass and removed once
// it completes. A heartbeat loop runs while at least one connection is
// registered.
//
// All public methods are thread-safe.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection

	hbStop chan struct{}

	heartbeat  time.Duration
	writeTO    time.Duration
	sendBuffer int
	now        func() time.Time

	logger   Logger
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithHeartbeatInterval sets the ping interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.heartbeat = d
		}
	}
}

// WithWriteTimeout bounds each frame write and ping.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.writeTO = d
		}
	}
}

// WithSendBuffer sets the per-connection outbox capacity.
func WithSendBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sendBuffer = n
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver sets the counter sink.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock overrides the time source used for frame timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry. The heartbeat starts with the
// first connection.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:      make(map[string]*Connection),
		heartbeat:  DefaultHeartbeatInterval,
		writeTO:    DefaultWriteTimeout,
		sendBuffer: DefaultSendBuffer,
		now:        time.Now,
		logger:     noopLogger{},
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers conn, sends it the connection_established frame and
// starts the heartbeat if this is the only connection.
//
// Parameters:
//   - ctx: Bounds the wait for the welcome frame
//   - conn: Transport for the new client
//
// Returns:
//   - *Connection: The registered connection
//   - error: Non-nil when the welcome frame could not be written; the
//     connection has already been removed in that case
func (r *Registry) Connect(ctx context.Context, conn Conn) (*Connection, error) {
	c := &Connection{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: r.now(),
		outbox:      make(chan envelope, r.sendBuffer),
		done:        make(chan struct{}),
	}
	if ra, ok := conn.(interface{ RemoteAddr() string }); ok {
		c.remoteAddr = ra.RemoteAddr()
	}
	go c.writer(r.writeTO)

	// The welcome frame is queued before the connection becomes visible to
	// Broadcast, so it is always the first frame the client sees.
	welcome, err := json.Marshal(Established(c.id, r.now()))
	if err != nil {
		c.close()
		return nil, fmt.Errorf("encoding welcome: %w", err)
	}
	result, err := c.enqueue(ctx, welcome, r.writeTO)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("queueing welcome: %w", err)
	}

	r.mu.Lock()
	r.conns[c.id] = c
	n := len(r.conns)
	if n == 1 {
		r.startHeartbeatLocked()
	}
	r.mu.Unlock()

	r.observer.ConnectionsChanged(n)
	r.logger.Info("websocket connected", "connection_id", c.id, "connections", n)

	if err := awaitResult(ctx, c, result, r.writeTO); err != nil {
		r.Disconnect(c.id)
		return nil, fmt.Errorf("sending welcome: %w", err)
	}
	return c, nil
}

// Disconnect removes a connection and closes its transport. Removing an
// unknown or already removed ID is a no-op. The heartbeat stops when the
// last connection leaves.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	n := len(r.conns)
	if n == 0 {
		r.stopHeartbeatLocked()
	}
	r.mu.Unlock()

	c.close()
	r.observer.ConnectionsChanged(n)
	r.logger.Info("websocket disconnected", "connection_id", id, "connections", n)
	return true
}

// Broadcast sends msg to every registered connection concurrently and
// returns how many received it. Connections that fail are removed after
// the pass; their errors are logged, never returned.
//
// Cancelling ctx does not cut the pass short: each write is bounded by the
// write timeout alone, so a caller that goes away cannot fail healthy
// connections.
func (r *Registry) Broadcast(ctx context.Context, msg any) int {
	ctx = context.WithoutCancel(ctx)

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal broadcast message", "error", err)
		return 0
	}

	conns := r.snapshot()
	if len(conns) == 0 {
		return 0
	}

	failed := r.fanOut(ctx, conns, func(c *Connection) error {
		return c.deliver(ctx, data, r.writeTO)
	})
	r.removeFailed(failed, "broadcast")

	delivered := len(conns) - len(failed)
	r.logger.Debug("broadcast sent", "recipients", delivered, "failed", len(failed))
	return delivered
}

// Send delivers msg to one connection. A delivery failure deregisters
// that connection and reports false. Cancelling ctx abandons the wait
// without deregistering.
func (r *Registry) Send(ctx context.Context, id string, msg any) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("send to unknown connection", "connection_id", id)
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal message", "connection_id", id, "error", err)
		return false
	}

	if err := c.deliver(ctx, data, r.writeTO); err != nil {
		if !callerGone(ctx, err) {
			r.removeFailed(map[string]error{id: err}, "send")
		}
		return false
	}
	return true
}

// Shutdown tells every client the server is going away, best effort, then
// clears the registry whether or not the notices were delivered.
func (r *Registry) Shutdown(ctx context.Context) {
	conns := r.snapshot()
	if len(conns) > 0 {
		data, err := json.Marshal(ShutdownNotice(r.now()))
		if err == nil {
			failed := r.fanOut(ctx, conns, func(c *Connection) error {
				return c.deliver(ctx, data, r.writeTO)
			})
			if len(failed) > 0 {
				r.logger.Debug("shutdown notice not delivered", "failed", len(failed))
			}
		}
	}

	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string]*Connection)
	r.stopHeartbeatLocked()
	r.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	r.observer.ConnectionsChanged(0)
	r.logger.Info("websocket registry cleared", "closed", len(all))
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// HeartbeatRunning reports whether the heartbeat loop is active.
func (r *Registry) HeartbeatRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hbStop != nil
}

// Stats returns connection counts and per-connection details.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		TotalConnections: len(r.conns),
		HeartbeatRunning: r.hbStop != nil,
		Connections:      make([]Info, 0, len(r.conns)),
	}
	for _, c := range r.conns {
		s.Connections = append(s.Connections, Info{
			ID:           c.id,
			RemoteAddr:   c.remoteAddr,
			ConnectedAt:  c.connectedAt,
			MessagesSent: c.sent.Load(),
		})
	}
	return s
}

func (r *Registry) snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// fanOut runs fn for every connection concurrently and collects failures
// by connection ID. It never stops early: every task reports success to
// the group and records its own error. Errors caused by ctx ending are not
// failures of the connection and are not collected.
func (r *Registry) fanOut(ctx context.Context, conns []*Connection, fn func(c *Connection) error) map[string]error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	for _, c := range conns {
		c := c
		g.Go(func() error {
			if err := fn(c); err != nil && !callerGone(ctx, err) {
				mu.Lock()
				failed[c.id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	//nolint:errcheck // Tasks never return an error
	g.Wait()
	return failed
}

// callerGone reports whether err only reflects ctx ending.
func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func (r *Registry) removeFailed(failed map[string]error, op string) {
	if len(failed) == 0 {
		return
	}
	for id, err := range failed {
		r.logger.Warn("removing failed websocket connection", "connection_id", id, "op", op, "error", err)
		r.Disconnect(id)
	}
	r.observer.DeliveryFailed(len(failed))
}

// startHeartbeatLocked launches the heartbeat loop. r.mu must be held.
func (r *Registry) startHeartbeatLocked() {
	if r.hbStop != nil {
		return
	}
	stop := make(chan struct{})
	r.hbStop = stop
	go r.heartbeatLoop(stop)
	r.logger.Debug("heartbeat started", "interval", r.heartbeat)
}

// stopHeartbeatLocked signals the heartbeat loop to exit. r.mu must be held.
func (r *Registry) stopHeartbeatLocked() {
	if r.hbStop == nil {
		return
	}
	close(r.hbStop)
	r.hbStop = nil
	r.logger.Debug("heartbeat stopped")
}

func (r *Registry) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.pingAll()
		}
	}
}

// pingAll pings every connection and removes the ones that fail.
func (r *Registry) pingAll() {
	conns := r.snapshot()
	if len(conns) == 0 {
		return
	}
	failed := r.fanOut(context.Background(), conns, func(c *Connection) error {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTO)
		defer cancel()
		return c.conn.Ping(ctx)
	})
	r.removeFailed(failed, "heartbeat")
}

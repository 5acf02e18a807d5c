package vehicle

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ActionResetAll is reported to update callbacks after Reset.
const ActionResetAll = "reset_all"

// Logger defines the logging interface used by the Store.
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

// Update describes a successful mutation. It is delivered to every
// registered UpdateFunc after the store lock has been released.
type Update struct {
	Action     string
	Parameters map[string]any
	Result     Result

	// State is the snapshot taken when the mutation committed.
	State State

	// Version increases by one with every committed mutation, so consumers
	// can discard updates that arrive out of order.
	Version uint64
}

// UpdateFunc receives committed updates.
type UpdateFunc func(ctx context.Context, u Update)

type callback struct {
	id int
	fn UpdateFunc
}

// Store owns the canonical vehicle state.
//
// Every mutation runs under a single mutex for its whole read-modify-write,
// so concurrent commands are fully serialized and readers only ever see the
// result of complete mutations. Handlers operate on a copy that replaces the
// live state only when they succeed.
//
// All public methods are thread-safe.
type Store struct {
	mu       sync.Mutex
	state    State
	version  uint64
	defaults Defaults
	now      func() time.Time

	cbMu      sync.RWMutex
	callbacks []callback
	nextCBID  int

	logger Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults sets the start-up and reset values.
func WithDefaults(d Defaults) Option {
	return func(s *Store) {
		s.defaults = d
	}
}

// WithLogger sets the store logger.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding the default state.
func NewStore(opts ...Option) *Store {
	s := &Store{
		defaults: FactoryDefaults(),
		now:      time.Now,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = NewState(s.defaults)
	return s
}

// Execute applies a named action with its parameters.
//
// Unknown categories and actions, invalid enum values and handler panics
// produce a failed Result without touching the state or LastUpdated.
// Numeric parameters are clamped into range rather than rejected.
//
// Parameters:
//   - ctx: Passed through to update callbacks
//   - action: Action name, aliases accepted (e.g. "climate_increase")
//   - params: Loosely typed parameters, typically decoded JSON
//
// Returns:
//   - Result: Success flag, modified fields, or the failure reason
func (s *Store) Execute(ctx context.Context, action string, params map[string]any) Result {
	a, err := ParseAction(action)
	if err != nil {
		s.logger.Warn("command rejected", "action", action, "error", err)
		return failed(action, err)
	}
	return s.run(ctx, action, a, params)
}

func (s *Store) run(ctx context.Context, name string, a Action, params map[string]any) Result {
	if params == nil {
		params = map[string]any{}
	}

	res, upd := s.apply(name, a, params)
	if !res.Success {
		s.logger.Warn("command failed", "action", name, "error", res.Error)
		return res
	}

	s.logger.Info("command executed", "action", name, "changes", res.Changes)
	s.notify(ctx, *upd)
	return res
}

// apply performs the locked read-modify-write.
func (s *Store) apply(name string, a Action, params map[string]any) (res Result, upd *Update) {
	sub, _ := a.Subsystem()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			res = failed(name, fmt.Errorf("%w: %v", ErrHandlerPanic, r))
			upd = nil
		}
	}()

	next := s.state.Clone()
	if err := handlers[a](&next, input{params: params, defaults: s.defaults}); err != nil {
		return failed(name, err), nil
	}

	changes := diff(&s.state, &next, sub)
	next.LastUpdated = s.now()
	s.state = next
	s.version++

	res = succeeded(name, changes)
	return res, &Update{
		Action:     name,
		Parameters: params,
		Result:     res,
		State:      s.state.Clone(),
		Version:    s.version,
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Version returns the number of committed mutations.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Defaults returns the values the store resets to.
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// Reset restores every subsystem to its defaults and notifies callbacks
// with action "reset_all".
func (s *Store) Reset(ctx context.Context) State {
	s.mu.Lock()
	next := NewState(s.defaults)
	next.LastUpdated = s.now()
	s.state = next
	s.version++
	upd := Update{
		Action:     ActionResetAll,
		Parameters: map[string]any{},
		Result:     succeeded(ActionResetAll, nil),
		State:      s.state.Clone(),
		Version:    s.version,
	}
	s.mu.Unlock()

	s.logger.Info("all vehicle states reset to defaults")
	s.notify(ctx, upd)
	return upd.State
}

// OnUpdate registers fn to run after every successful mutation.
// Callbacks run synchronously in registration order. The returned function
// unregisters fn and is safe to call more than once.
func (s *Store) OnUpdate(fn UpdateFunc) (unregister func()) {
	s.cbMu.Lock()
	s.nextCBID++
	id := s.nextCBID
	s.callbacks = append(s.callbacks, callback{id: id, fn: fn})
	s.cbMu.Unlock()

	return func() {
		s.cbMu.Lock()
		defer s.cbMu.Unlock()
		for i, cb := range s.callbacks {
			if cb.id == id {
				s.callbacks = append(s.callbacks[:i:i], s.callbacks[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(ctx context.Context, u Update) {
	s.cbMu.RLock()
	cbs := make([]callback, len(s.callbacks))
	copy(cbs, s.callbacks)
	s.cbMu.RUnlock()

	for _, cb := range cbs {
		s.invoke(ctx, cb.fn, u)
	}
}

// invoke isolates callback panics from the caller and from other callbacks.
func (s *Store) invoke(ctx context.Context, fn UpdateFunc, u Update) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("update callback panicked", "action", u.Action, "panic", r)
		}
	}()
	fn(ctx, u)
}

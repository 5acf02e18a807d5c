package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/connection"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/logging"
	"github.com/nerrad567/vehicle-ai-core/internal/metrics"
	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
	"github.com/nerrad567/vehicle-ai-core/internal/speech"
	"github.com/nerrad567/vehicle-ai-core/internal/telemetry"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Parser interprets free text without executing it. *nlp.Normalizer
// implements it.
type Parser interface {
	Parse(ctx context.Context, text string) nlp.ParseResult
	Status(ctx context.Context) nlp.Status
}

// Transcriber turns uploaded audio into text. *speech.Client implements it.
type Transcriber interface {
	Available() bool
	Model() string
	TestConnection(ctx context.Context) bool
	Transcribe(ctx context.Context, audio []byte, format string) (speech.Result, error)
}

// HistoryReader lists journal entries, newest first. *telemetry.Journal
// implements it.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]telemetry.Record, error)
}

// HealthChecker is implemented by every optional backend reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	NLP      config.NLPConfig
	Features config.FeaturesConfig
	Metrics  config.MetricsConfig
	Logger   *logging.Logger

	Store      *vehicle.Store
	Processor  *command.Processor
	Registry   *connection.Registry
	Parser     Parser
	Speech     Transcriber       // optional
	History    HistoryReader     // optional
	Prometheus *metrics.Registry // optional
	Sidecar    SidecarReporter   // optional

	// Backends maps service names (mqtt, influxdb, journal) to their health
	// checks. Services missing from the map are reported as disabled.
	Backends map[string]HealthChecker

	Version string
}

// Server is the HTTP API and WebSocket server.
//
// It manages the HTTP listener, routes, middleware and the state_update
// broadcast hook on the store. The server is created with New() and
// started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	nlpCfg   config.NLPConfig
	features config.FeaturesConfig
	metCfg   config.MetricsConfig
	logger   *logging.Logger

	store      *vehicle.Store
	processor  *command.Processor
	registry   *connection.Registry
	parser     Parser
	speech     Transcriber
	history    HistoryReader
	prometheus *metrics.Registry
	sidecar    SidecarReporter
	backends   map[string]HealthChecker

	version   string
	startTime time.Time
	now       func() time.Time

	server      *http.Server
	unsubscribe func()
}

// New creates a new API server with the given dependencies and registers
// the store hook that broadcasts every committed update as state_update.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, store, processor, registry, parser)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("vehicle store is required")
	}
	if deps.Processor == nil {
		return nil, fmt.Errorf("command processor is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	if deps.Parser == nil {
		return nil, fmt.Errorf("text parser is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		nlpCfg:     deps.NLP,
		features:   deps.Features,
		metCfg:     deps.Metrics,
		logger:     deps.Logger,
		store:      deps.Store,
		processor:  deps.Processor,
		registry:   deps.Registry,
		parser:     deps.Parser,
		speech:     deps.Speech,
		history:    deps.History,
		prometheus: deps.Prometheus,
		sidecar:    deps.Sidecar,
		backends:   deps.Backends,
		version:    deps.Version,
		startTime:  time.Now(),
		now:        time.Now,
	}
	if s.wsCfg.Path == "" {
		s.wsCfg.Path = "/ws"
	}
	if s.metCfg.Path == "" {
		s.metCfg.Path = "/metrics"
	}

	s.unsubscribe = s.store.OnUpdate(s.broadcastState)
	return s, nil
}

// Handler returns the fully wired router. Start serves the same handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       config.Seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: config.Seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      config.Seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       config.Seconds(s.cfg.Timeouts.Idle),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close detaches the broadcast hook and gracefully shuts down the listener.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections. WebSocket clients are
// released separately by Registry.Shutdown.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// broadcastState pushes the dashboard view of a committed update to every
// WebSocket client.
func (s *Server) broadcastState(ctx context.Context, u vehicle.Update) {
	msg := connection.StateUpdate(vehicle.FrontendView(u.State), s.now())
	n := s.registry.Broadcast(ctx, msg)
	s.logger.Debug("state update broadcast", "action", u.Action, "version", u.Version, "delivered", n)
}

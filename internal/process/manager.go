package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Defaults applied by NewManager to zero-valued Config fields.
const (
	defaultRestartDelay        = 5 * time.Second
	defaultMaxRestartDelay     = 5 * time.Minute
	defaultStableThreshold     = 2 * time.Minute
	defaultGracefulTimeout     = 10 * time.Second
	defaultHealthCheckInterval = 30 * time.Second

	// healthCheckTimeout bounds one HealthCheckFunc call.
	healthCheckTimeout = 5 * time.Second

	// maxHealthFailures consecutive failed checks kill the process.
	maxHealthFailures = 3

	// maxLogLine is the longest output line logged in one entry.
	maxLogLine = 64 * 1024
)

// Config holds configuration for a managed subprocess.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, resolved through PATH when not absolute.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format) appended
	// to the parent environment.
	Env []string

	// WorkDir is the working directory. Empty inherits the parent's.
	WorkDir string

	// RestartOnFailure enables automatic restart when the process exits
	// unexpectedly.
	RestartOnFailure bool

	// RestartDelay is the first backoff step. Each further consecutive
	// failure doubles it up to MaxRestartDelay.
	RestartDelay time.Duration

	// MaxRestartDelay caps the backoff.
	MaxRestartDelay time.Duration

	// StableThreshold is how long a process must run before its restart
	// counter resets.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheckFunc is polled while the process runs. If nil the process
	// is healthy while it is alive.
	HealthCheckFunc func(ctx context.Context) error

	// HealthCheckInterval is how often HealthCheckFunc runs.
	HealthCheckInterval time.Duration

	// OnStart is called each time the process starts.
	OnStart func()

	// OnStop is called when the process exits, with nil for requested stops.
	OnStop func(err error)

	// OnRestart is called before each restart attempt.
	OnRestart func(attempt int)
}

// SidecarConfig maps the ml.sidecar section onto a Config for the ML
// parser service.
//
// Parameters:
//   - cfg: Sidecar section of config.yaml
//   - interval: Health poll interval in seconds (ml.health_interval)
//   - health: Readiness probe, typically nlp.MLClient.HealthCheck
//
// Returns:
//   - Config: Restarting configuration named "ml-parser"
func SidecarConfig(cfg config.SidecarConfig, interval int, health func(ctx context.Context) error) Config {
	c := Config{
		Name:                "ml-parser",
		Binary:              cfg.Command,
		Args:                cfg.Args,
		WorkDir:             cfg.WorkDir,
		RestartOnFailure:    true,
		RestartDelay:        defaultRestartDelay,
		MaxRestartDelay:     defaultMaxRestartDelay,
		StableThreshold:     defaultStableThreshold,
		MaxRestartAttempts:  cfg.MaxRestarts,
		GracefulTimeout:     defaultGracefulTimeout,
		HealthCheckFunc:     health,
		HealthCheckInterval: defaultHealthCheckInterval,
	}
	if d := config.Seconds(cfg.RestartDelay); d > 0 {
		c.RestartDelay = d
	}
	if d := config.Seconds(interval); d > 0 {
		c.HealthCheckInterval = d
	}
	return c
}

// RecoverableError lets an exit error tell the manager whether a restart
// can help.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether a restart may fix err. Errors that do not
// implement RecoverableError are assumed recoverable.
func IsRecoverable(err error) bool {
	var re RecoverableError
	if errors.As(err, &re) {
		return re.IsRecoverable()
	}
	return true
}

// Logger defines the logging interface for the process manager.
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

// Manager supervises one subprocess.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool

	// done is closed when the monitor goroutine exits.
	done chan struct{}

	// stopCh wakes a monitor waiting out a restart delay.
	stopCh   chan struct{}
	stopOnce *sync.Once
}

// NewManager creates a manager. Zero durations take package defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = defaultMaxRestartDelay
	}
	if cfg.StableThreshold == 0 {
		cfg.StableThreshold = defaultStableThreshold
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Start launches the subprocess and begins supervising it. It fails if
// the process is already running or cannot be started; later crashes are
// handled by the restart policy.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.restartCount = 0
	m.done = make(chan struct{})
	m.stopCh = make(chan struct{})
	m.stopOnce = &sync.Once{}
	m.mu.Unlock()

	if err := m.startProcess(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx)
	return nil
}

func (m *Manager) startProcess(ctx context.Context) error {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Command comes from operator config

	// Own process group so Stop reaches the sidecar's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	go m.captureOutput("stdout", stdout)
	go m.captureOutput("stderr", stderr)

	m.logger.Info("process started", "name", m.config.Name, "pid", cmd.Process.Pid)

	if m.config.OnStart != nil {
		m.config.OnStart()
	}
	return nil
}

// captureOutput logs the stream line by line until it closes.
func (m *Manager) captureOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLogLine)
	for scanner.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", stream,
			"line", scanner.Text(),
		)
	}
	if err := scanner.Err(); err != nil {
		m.logger.Debug("output stream closed", "name", m.config.Name, "stream", stream, "error", err)
	}
}

// wait blocks until cmd exits, ctx ends, or the health check fails
// maxHealthFailures times in a row, in which case the process is killed.
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()

	if m.config.HealthCheckFunc == nil {
		select {
		case err := <-exitCh:
			return err
		case <-ctx.Done():
			return <-exitCh
		}
	}

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exitCh:
			return err

		case <-ctx.Done():
			// CommandContext kills the process; collect its exit.
			return <-exitCh

		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err := m.config.HealthCheckFunc(checkCtx)
			cancel()

			if err == nil {
				if failures > 0 {
					m.logger.Info("health check recovered", "name", m.config.Name, "previous_failures", failures)
				}
				failures = 0
				continue
			}

			failures++
			m.logger.Warn("health check failed",
				"name", m.config.Name,
				"error", err,
				"consecutive_failures", failures,
			)
			if failures < maxHealthFailures {
				continue
			}

			m.logger.Error("health check failed repeatedly, killing process", "name", m.config.Name, "failures", failures)
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			select {
			case <-exitCh:
			case <-time.After(healthCheckTimeout):
				return errors.New("process did not exit after kill")
			}
			return fmt.Errorf("killed after %d failed health checks: %w", failures, err)
		}
	}
}

// calculateBackoffDelay returns RestartDelay doubled for every attempt
// after the first, capped at MaxRestartDelay.
func (m *Manager) calculateBackoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	return min(delay, m.config.MaxRestartDelay)
}

// monitor watches the process and applies the restart policy.
func (m *Manager) monitor(ctx context.Context) {
	m.mu.RLock()
	done, stopCh := m.done, m.stopCh
	m.mu.RUnlock()
	defer close(done)

	for {
		m.mu.RLock()
		cmd := m.cmd
		started := m.startTime
		m.mu.RUnlock()

		err := m.wait(ctx, cmd)

		m.mu.Lock()
		stopRequested := m.stopRequested
		if stopRequested || ctx.Err() != nil {
			m.status = StatusStopped
		} else {
			m.status = StatusFailed
			m.lastError = err
		}
		m.mu.Unlock()

		if stopRequested || ctx.Err() != nil {
			m.logger.Info("process stopped", "name", m.config.Name)
			if m.config.OnStop != nil {
				m.config.OnStop(nil)
			}
			return
		}

		m.logger.Warn("process exited unexpectedly", "name", m.config.Name, "error", err)
		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if !m.config.RestartOnFailure {
			return
		}
		if !IsRecoverable(err) {
			m.logger.Error("process failed with unrecoverable error", "name", m.config.Name, "error", err)
			return
		}

		m.mu.Lock()
		if time.Since(started) >= m.config.StableThreshold {
			m.restartCount = 0
		}
		attempt := m.restartCount + 1
		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.mu.Unlock()
			m.logger.Error("max restart attempts reached", "name", m.config.Name, "attempts", attempt-1)
			return
		}
		m.restartCount = attempt
		m.mu.Unlock()

		delay := m.calculateBackoffDelay(attempt)
		m.logger.Info("restarting process", "name", m.config.Name, "attempt", attempt, "delay", delay)
		if m.config.OnRestart != nil {
			m.config.OnRestart(attempt)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		m.mu.RLock()
		stopRequested = m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			return
		}

		for {
			err := m.startProcess(ctx)
			if err == nil {
				break
			}
			m.logger.Error("failed to restart process", "name", m.config.Name, "error", err)
			m.mu.Lock()
			m.lastError = err
			attempt = m.restartCount + 1
			if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
				m.mu.Unlock()
				return
			}
			m.restartCount = attempt
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-time.After(m.calculateBackoffDelay(attempt)):
			}
		}
	}
}

// Stop sends SIGTERM to the process group, waits up to GracefulTimeout,
// then sends SIGKILL. It is a no-op when nothing is running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	running := m.status == StatusRunning || m.status == StatusStarting
	if m.stopOnce != nil {
		m.stopOnce.Do(func() { close(m.stopCh) })
	}
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	if !running || cmd == nil || cmd.Process == nil {
		// A monitor may be sleeping between restarts.
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM", "name", m.config.Name, "error", err)
	}

	timer := time.NewTimer(m.config.GracefulTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", m.config.Name, "timeout", m.config.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Stats is a point-in-time view of the managed process.
type Stats struct {
	Name         string  `json:"name"`
	Status       Status  `json:"status"`
	PID          int     `json:"pid,omitempty"`
	Uptime       float64 `json:"uptime_seconds,omitempty"`
	RestartCount int     `json:"restart_count"`
	LastError    string  `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
	}
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime).Seconds()
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}

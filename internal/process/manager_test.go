package process

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{
		Name:   "test-proc",
		Binary: "/usr/bin/test",
		Args:   []string{"--flag"},
	})

	if m.config.Name != "test-proc" {
		t.Errorf("Name = %q, want %q", m.config.Name, "test-proc")
	}
	if m.config.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, 5*time.Second)
	}
	if m.config.MaxRestartDelay != 5*time.Minute {
		t.Errorf("MaxRestartDelay = %v, want %v", m.config.MaxRestartDelay, 5*time.Minute)
	}
	if m.config.StableThreshold != 2*time.Minute {
		t.Errorf("StableThreshold = %v, want %v", m.config.StableThreshold, 2*time.Minute)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, 10*time.Second)
	}
	if m.config.HealthCheckInterval != 30*time.Second {
		t.Errorf("HealthCheckInterval = %v, want %v", m.config.HealthCheckInterval, 30*time.Second)
	}
}

func TestSidecarConfig(t *testing.T) {
	health := func(context.Context) error { return nil }
	cfg := SidecarConfig(config.SidecarConfig{
		Enabled:      true,
		Command:      "python",
		Args:         []string{"-m", "uvicorn", "parser:app", "--port", "8001"},
		WorkDir:      "/opt/parser",
		RestartDelay: 2,
		MaxRestarts:  4,
	}, 15, health)

	if cfg.Name != "ml-parser" {
		t.Errorf("Name = %q, want ml-parser", cfg.Name)
	}
	if cfg.Binary != "python" || len(cfg.Args) != 5 {
		t.Errorf("command = %q %v", cfg.Binary, cfg.Args)
	}
	if cfg.WorkDir != "/opt/parser" {
		t.Errorf("WorkDir = %q", cfg.WorkDir)
	}
	if !cfg.RestartOnFailure {
		t.Error("RestartOnFailure = false, want true")
	}
	if cfg.RestartDelay != 2*time.Second {
		t.Errorf("RestartDelay = %v, want 2s", cfg.RestartDelay)
	}
	if cfg.MaxRestartAttempts != 4 {
		t.Errorf("MaxRestartAttempts = %d, want 4", cfg.MaxRestartAttempts)
	}
	if cfg.HealthCheckInterval != 15*time.Second {
		t.Errorf("HealthCheckInterval = %v, want 15s", cfg.HealthCheckInterval)
	}
	if cfg.HealthCheckFunc == nil {
		t.Error("HealthCheckFunc not wired")
	}
}

func TestSidecarConfig_ZeroValuesKeepDefaults(t *testing.T) {
	cfg := SidecarConfig(config.SidecarConfig{Command: "parser"}, 0, nil)
	if cfg.RestartDelay != defaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", cfg.RestartDelay, defaultRestartDelay)
	}
	if cfg.HealthCheckInterval != defaultHealthCheckInterval {
		t.Errorf("HealthCheckInterval = %v, want %v", cfg.HealthCheckInterval, defaultHealthCheckInterval)
	}
	if cfg.MaxRestartAttempts != 0 {
		t.Errorf("MaxRestartAttempts = %d, want 0 (unlimited)", cfg.MaxRestartAttempts)
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{Name: "test", Binary: "/bin/true"})

	if m.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", m.Status(), StatusStopped)
	}
	stats := m.Stats()
	if stats.Name != "test" || stats.Status != StatusStopped || stats.PID != 0 || stats.LastError != "" {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Uptime != 0 || stats.RestartCount != 0 {
		t.Errorf("Stats() uptime=%v restarts=%d, want zero", stats.Uptime, stats.RestartCount)
	}
}

func TestManager_StopWhenNotRunning(t *testing.T) {
	m := NewManager(Config{Name: "test", Binary: "/bin/true"})
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on stopped process error = %v, want nil", err)
	}
}

func TestManager_StartAndStop(t *testing.T) {
	started := false
	m := NewManager(Config{
		Name:            "test-sleep",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
		OnStart:         func() { started = true },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !started {
		t.Error("OnStart callback was not called")
	}
	if st := m.Stats(); st.Status != StatusRunning || st.PID == 0 {
		t.Errorf("after Start: status=%q pid=%d", st.Status, st.PID)
	}

	if err := m.Start(ctx); err == nil {
		t.Error("second Start() expected error, got nil")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
}

func TestManager_StartWithInvalidBinary(t *testing.T) {
	m := NewManager(Config{Name: "bad-binary", Binary: "/nonexistent/binary"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid binary expected error, got nil")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() after failed start error = %v", err)
	}
}

func TestManager_RestartsUntilLimit(t *testing.T) {
	var restarts atomic.Int32
	m := NewManager(Config{
		Name:               "crashing",
		Binary:             "/bin/sh",
		Args:               []string{"-c", "exit 3"},
		RestartOnFailure:   true,
		RestartDelay:       10 * time.Millisecond,
		MaxRestartDelay:    20 * time.Millisecond,
		MaxRestartAttempts: 2,
		OnRestart:          func(int) { restarts.Add(1) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		t.Fatal("monitor did not give up after max restarts")
	}

	if got := restarts.Load(); got != 2 {
		t.Errorf("restarts = %d, want 2", got)
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
	if st := m.Stats(); st.LastError == "" || st.RestartCount != 2 {
		t.Errorf("Stats() after crashes = %+v", st)
	}
}

func TestManager_StopDuringRestartDelay(t *testing.T) {
	m := NewManager(Config{
		Name:             "crashing",
		Binary:           "/bin/sh",
		Args:             []string{"-c", "exit 1"},
		RestartOnFailure: true,
		RestartDelay:     time.Minute,
		MaxRestartDelay:  time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Stop() took %v, should not wait out the restart delay", elapsed)
	}
}

func TestManager_HealthFailureKillsProcess(t *testing.T) {
	var stopped atomic.Bool
	m := NewManager(Config{
		Name:                "hung",
		Binary:              "/bin/sleep",
		Args:                []string{"60"},
		HealthCheckInterval: 10 * time.Millisecond,
		HealthCheckFunc:     func(context.Context) error { return errors.New("connection refused") },
		OnStop: func(err error) {
			if err != nil {
				stopped.Store(true)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		t.Fatal("process was not killed after failed health checks")
	}
	if !stopped.Load() {
		t.Error("OnStop was not called with the failure")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestCalculateBackoffDelay(t *testing.T) {
	m := NewManager(Config{
		Name:            "test",
		Binary:          "/bin/true",
		RestartDelay:    1 * time.Second,
		MaxRestartDelay: 30 * time.Second,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := m.calculateBackoffDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

type testRecoverableError struct {
	recoverable bool
}

func (e *testRecoverableError) Error() string       { return "test error" }
func (e *testRecoverableError) IsRecoverable() bool { return e.recoverable }

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"plain error", context.DeadlineExceeded, true},
		{"recoverable", &testRecoverableError{recoverable: true}, true},
		{"not recoverable", &testRecoverableError{recoverable: false}, false},
		{"wrapped not recoverable", errors.Join(errors.New("exit"), &testRecoverableError{}), false},
	}
	for _, tt := range tests {
		if got := IsRecoverable(tt.err); got != tt.want {
			t.Errorf("%s: IsRecoverable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/nlp"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestConfigPath(t *testing.T) {
	t.Setenv("VEHICLE_CONFIG", "")

	cmd := newRootCmd()
	if got := configPath(cmd); got != defaultConfigPath {
		t.Errorf("default configPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("VEHICLE_CONFIG", "/etc/vehicle/env.yaml")
	if got := configPath(cmd); got != "/etc/vehicle/env.yaml" {
		t.Errorf("env configPath() = %q", got)
	}

	if err := cmd.PersistentFlags().Set("config", "/etc/vehicle/flag.yaml"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := configPath(cmd); got != "/etc/vehicle/flag.yaml" {
		t.Errorf("flag configPath() = %q, flag should win over env", got)
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "vehicled "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestParseCmd_FallsBackWithoutML(t *testing.T) {
	path := writeConfig(t, `
ml:
  url: "http://127.0.0.1:1"
  timeout: 1
  health_timeout: 1
logging:
  level: error
`)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "parse", "turn", "up", "the", "music"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("parse: %v", err)
	}

	var got struct {
		Text       string          `json:"text"`
		Result     nlp.ParseResult `json:"result"`
		Threshold  float64         `json:"threshold"`
		Executable bool            `json:"executable"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.Text != "turn up the music" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Result.Action != "infotainment_unknown" {
		t.Errorf("action = %q, want infotainment_unknown", got.Result.Action)
	}
	if got.Result.Source != nlp.SourceFallback {
		t.Errorf("source = %q, want %q", got.Result.Source, nlp.SourceFallback)
	}
	if got.Threshold != 0.5 {
		t.Errorf("threshold = %v, want the http default 0.5", got.Threshold)
	}
	if got.Executable {
		t.Error("a fallback result must not be executable")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 0\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail with an out-of-range port")
	}
}

func TestRun_UnreadableDatabase(t *testing.T) {
	// A regular file where the database directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, fmt.Sprintf(`
api:
  port: %d
database:
  enabled: true
  path: %q
logging:
  level: error
`, freePort(t), filepath.Join(blocker, "sub", "vehicle.db")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); err == nil {
		t.Fatal("run() should fail when the database cannot be created")
	}
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "vehicle.db")
	path := writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
ml:
  url: "http://127.0.0.1:1"
  timeout: 1
  health_timeout: 1
database:
  enabled: true
  path: %q
  wal_mode: true
  busy_timeout: 5
  retention_days: 30
logging:
  level: error
  output: stderr
`, port, dbPath))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, path) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Post(base+"/api/lights/turn-off", "application/json", nil)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("turn-off status = %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := http.Get(base + "/api/history?limit=5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var history struct {
		Count int `json:"count"`
	}
	err = json.NewDecoder(resp.Body).Decode(&history)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Count != 1 {
		t.Errorf("journal count = %d, want 1", history.Count)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() = %v, want nil on clean shutdown", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

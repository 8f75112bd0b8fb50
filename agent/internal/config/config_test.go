package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hrstress/hrstress/pkg/hrv"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  server_endpoint: "localhost:50051"
  agent_id: wrist-01
  scan_interval: 10s
  ship_interval: 5s
  buffer_size: 500
  window_seconds: 120
  include_samples: true
  sources:
    - id: morning
      type: file
      path: /data/morning.csv
      ts_column: Time
      hr_column: Pulse
    - id: remote
      type: http
      endpoint: "http://device.local/export.csv"
      auth:
        mode: bearer
        token_env: DEVICE_TOKEN
`
	cfg := loadFromString(t, yaml)
	a := cfg.Agent

	if a.ServerEndpoint != "localhost:50051" || a.AgentID != "wrist-01" {
		t.Errorf("endpoint/id: got %q/%q", a.ServerEndpoint, a.AgentID)
	}
	if a.ScanInterval != 10*time.Second || a.ShipInterval != 5*time.Second {
		t.Errorf("intervals: got %v/%v", a.ScanInterval, a.ShipInterval)
	}
	if a.BufferSize != 500 || a.WindowSeconds != 120 || !a.IncludeSamples {
		t.Errorf("buffer/window/samples: got %d/%d/%v", a.BufferSize, a.WindowSeconds, a.IncludeSamples)
	}
	if len(a.Sources) != 2 {
		t.Fatalf("sources: got %d, want 2", len(a.Sources))
	}
	if got := a.Sources[0].Hints(); got != (hrv.Hints{Timestamp: "Time", HeartRate: "Pulse"}) {
		t.Errorf("hints: got %+v", got)
	}
	if a.Sources[0].Origin() != "/data/morning.csv" || a.Sources[1].Origin() != "http://device.local/export.csv" {
		t.Errorf("origins: %q, %q", a.Sources[0].Origin(), a.Sources[1].Origin())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `
agent:
  server_endpoint: "localhost:50051"
`)
	a := cfg.Agent
	if a.ScanInterval != DefaultScanInterval {
		t.Errorf("scan_interval: got %v, want %v", a.ScanInterval, DefaultScanInterval)
	}
	if a.ShipInterval != DefaultShipInterval {
		t.Errorf("ship_interval: got %v, want %v", a.ShipInterval, DefaultShipInterval)
	}
	if a.BufferSize != DefaultBufferSize {
		t.Errorf("buffer_size: got %d, want %d", a.BufferSize, DefaultBufferSize)
	}
	if a.WindowSeconds != hrv.DefaultWindowSeconds {
		t.Errorf("window_seconds: got %d, want %d", a.WindowSeconds, hrv.DefaultWindowSeconds)
	}
	if a.ServerAuth.Header != DefaultAPIKeyHeader {
		t.Errorf("server_auth.header: got %q, want %q", a.ServerAuth.Header, DefaultAPIKeyHeader)
	}
	if a.Log.Level != "info" || a.Log.Format != "json" {
		t.Errorf("log: got %+v", a.Log)
	}
	if a.AgentID == "" {
		if h, _ := os.Hostname(); h != "" {
			t.Error("agent_id should default to the hostname")
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing server endpoint",
			yaml:    "agent:\n  sources: []\n",
			wantErr: "server_endpoint",
		},
		{
			name: "unknown source type",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  sources:
    - id: s
      type: kafka
`,
			wantErr: "unknown type",
		},
		{
			name: "file source without path",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  sources:
    - id: s
      type: file
`,
			wantErr: "path is required",
		},
		{
			name: "http source without endpoint",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  sources:
    - id: s
      type: http
`,
			wantErr: "endpoint is required",
		},
		{
			name: "duplicate ids",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  sources:
    - {id: s, type: file, path: a.csv}
    - {id: s, type: file, path: b.csv}
`,
			wantErr: "duplicate id",
		},
		{
			name: "unknown auth mode",
			yaml: `
agent:
  server_endpoint: "localhost:50051"
  sources:
    - id: s
      type: http
      endpoint: "http://x/y.csv"
      auth:
        mode: magictoken
`,
			wantErr: "unknown auth mode",
		},
		{
			name:    "window out of range",
			yaml:    "agent:\n  server_endpoint: x:1\n  window_seconds: 10\n",
			wantErr: "window_seconds",
		},
		{
			name:    "bad log level",
			yaml:    "agent:\n  server_endpoint: x:1\n  log:\n    level: loud\n",
			wantErr: "unknown level",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config: read file") {
		t.Errorf("error = %v, want read file error", err)
	}
}

func TestAuthConfig_Secrets(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	t.Setenv("TEST_PASSWORD", "hunter2")
	a := AuthConfig{KeyEnv: "TEST_API_KEY", TokenEnv: "TEST_BEARER_TOKEN", PasswordEnv: "TEST_PASSWORD"}
	if a.Key() != "supersecret" || a.Token() != "mytoken" || a.Password() != "hunter2" {
		t.Errorf("got %q/%q/%q", a.Key(), a.Token(), a.Password())
	}
	if (AuthConfig{}).Key() != "" {
		t.Error("Key() with no KeyEnv should be empty")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(endpoint string) {
		t.Helper()
		content := "agent:\n  server_endpoint: \"" + endpoint + "\"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("first:1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write("second:2")

	select {
	case c := <-got:
		if c.Agent.ServerEndpoint != "second:2" {
			t.Errorf("reloaded endpoint = %q, want second:2", c.Agent.ServerEndpoint)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatch_SkipsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  server_endpoint: \"a:1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	go Watch(ctx, path, func(c *Config) { got <- c }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("agent:\n  scan_interval: -1s\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case c := <-got:
		t.Fatalf("invalid config delivered: %+v", c.Agent)
	case <-time.After(2 * reloadDelay):
	}

	if err := os.WriteFile(path, []byte("agent:\n  server_endpoint: \"b:2\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case c := <-got:
		if c.Agent.ServerEndpoint != "b:2" {
			t.Errorf("endpoint = %q, want b:2", c.Agent.ServerEndpoint)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after the file was fixed")
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Only the agent section is present; the server falls back to defaults.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", s.GRPCPort, DefaultGRPCPort)
	}
	if s.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", s.HTTPPort, DefaultHTTPPort)
	}
	if s.Session.TTL != DefaultSessionTTL {
		t.Errorf("session.ttl: got %v, want %v", s.Session.TTL, DefaultSessionTTL)
	}
	if s.Session.History != DefaultSessionHistory {
		t.Errorf("session.history: got %d, want %d", s.Session.History, DefaultSessionHistory)
	}
	if s.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("max_upload_bytes: got %d, want %d", s.MaxUploadBytes, DefaultMaxUploadBytes)
	}
	if s.WindowSeconds != 60 {
		t.Errorf("window_seconds: got %d, want 60", s.WindowSeconds)
	}
	if s.Publish.Subject != DefaultSubject || s.Publish.URL() != "" {
		t.Errorf("publish: got %+v, want disabled with default subject", s.Publish)
	}
	if s.Log.Level != "info" {
		t.Errorf("log.level: got %q, want info", s.Log.Level)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  auth:
    mode: apikey
    key_env: MY_KEY
    header: x-hr-key
  session:
    ttl: 10m
  max_upload_bytes: 1048576
  window_seconds: 120
  publish:
    nats_url: nats://localhost:4222
    subject: hr.out
  alerts:
    rules:
      - name: low-hrv
        condition: "rmssd < 20"
        severity: critical
    webhooks:
      - type: slack
        url_env: SLACK_URL
  log:
    level: debug
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", s.GRPCPort)
	}
	if s.Auth.Mode != "apikey" {
		t.Errorf("auth.mode: got %q, want apikey", s.Auth.Mode)
	}
	if s.Auth.EffectiveHeader() != "x-hr-key" {
		t.Errorf("header: got %q, want x-hr-key", s.Auth.EffectiveHeader())
	}
	if s.Session.TTL != 10*time.Minute {
		t.Errorf("session.ttl: got %v, want 10m", s.Session.TTL)
	}
	if s.MaxUploadBytes != 1<<20 || s.WindowSeconds != 120 {
		t.Errorf("upload: got %d bytes / %ds", s.MaxUploadBytes, s.WindowSeconds)
	}
	if s.Publish.URL() != "nats://localhost:4222" || s.Publish.Subject != "hr.out" {
		t.Errorf("publish: got %+v", s.Publish)
	}
	if len(s.Alerts.Rules) != 1 || s.Alerts.Rules[0].Condition != "rmssd < 20" {
		t.Errorf("alerts.rules: got %+v", s.Alerts.Rules)
	}
	if s.Log.Level != "debug" {
		t.Errorf("log.level: got %q, want debug", s.Log.Level)
	}
}

func TestLoad_DefaultHeader(t *testing.T) {
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: K
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h := cfg.Server.Auth.EffectiveHeader(); h != "x-api-key" {
		t.Errorf("EffectiveHeader: got %q, want x-api-key", h)
	}
}

func TestLoad_KeyEnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
}

func TestPublishURL_EnvWins(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://env:4222")
	p := PublishConfig{NATSURL: "nats://file:4222", URLEnv: "TEST_NATS_URL"}
	if got := p.URL(); got != "nats://env:4222" {
		t.Errorf("URL(): got %q, want env value", got)
	}
	p.URLEnv = "TEST_NATS_URL_UNSET"
	if got := p.URL(); got != "nats://file:4222" {
		t.Errorf("URL(): got %q, want file value", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"auth mode", "server:\n  auth:\n    mode: oauth2\n", "auth.mode"},
		{"grpc port", "server:\n  grpc_port: 70000\n", "grpc_port"},
		{"ttl", "server:\n  session:\n    ttl: 0s\n", "session.ttl"},
		{"history", "server:\n  session:\n    history: 0\n", "session.history"},
		{"upload cap", "server:\n  max_upload_bytes: -1\n", "max_upload_bytes"},
		{"window", "server:\n  window_seconds: 10\n", "window_seconds"},
		{"log level", "server:\n  log:\n    level: loud\n", "log"},
		{"rule", "server:\n  alerts:\n    rules:\n      - name: x\n", "rules[0]"},
		{"webhook", "server:\n  alerts:\n    webhooks:\n      - type: pagerduty\n", "webhooks[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

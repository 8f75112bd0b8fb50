package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/logging"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "rmssd < 20", "mean_hr > 100",
	// "stress == high".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultSessionTTL        = 30 * time.Minute
	DefaultSessionHistory    = 10
	DefaultMaxUploadBytes    = 10 << 20
	DefaultBroadcastInterval = 5 * time.Second
	DefaultSubject           = "hrstress.sessions"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Session controls in-memory session retention.
	Session SessionConfig `yaml:"session"`

	// MaxUploadBytes caps the request body of POST /api/v1/analyze.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// WindowSeconds is the analysis window used for uploads that do not set one.
	WindowSeconds int `yaml:"window_seconds"`

	// BroadcastInterval is how often the WebSocket hub pushes the summary.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// Publish fans recorded sessions out to NATS.
	Publish PublishConfig `yaml:"publish"`

	Log logging.Config `yaml:"log"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SessionConfig controls in-memory session retention.
type SessionConfig struct {
	// TTL is how long a source's latest session remains in the store after
	// its last update. Default: 30m.
	TTL time.Duration `yaml:"ttl"`

	// History is how many sessions each source keeps for comparison.
	// Default: 10.
	History int `yaml:"history"`
}

// PublishConfig configures the NATS publisher. Publishing is disabled when
// neither NATSURL nor URLEnv yields a URL.
type PublishConfig struct {
	NATSURL string `yaml:"nats_url"`

	// URLEnv names an environment variable holding the NATS URL; it wins
	// over NATSURL when set and non-empty.
	URLEnv string `yaml:"url_env"`

	Subject string `yaml:"subject"`
}

// URL returns the effective NATS URL.
func (p PublishConfig) URL() string {
	if p.URLEnv != "" {
		if v := os.Getenv(p.URLEnv); v != "" {
			return v
		}
	}
	return p.NATSURL
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort:          DefaultGRPCPort,
			HTTPPort:          DefaultHTTPPort,
			Session:           SessionConfig{TTL: DefaultSessionTTL, History: DefaultSessionHistory},
			MaxUploadBytes:    DefaultMaxUploadBytes,
			WindowSeconds:     hrv.DefaultWindowSeconds,
			BroadcastInterval: DefaultBroadcastInterval,
			Publish:           PublishConfig{Subject: DefaultSubject},
			Log:               logging.Defaults(),
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := &cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Session.TTL <= 0 {
		return fmt.Errorf("server.session.ttl must be positive")
	}
	if s.Session.History < 1 {
		return fmt.Errorf("server.session.history must be at least 1")
	}
	if s.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if err := hrv.ValidateWindow(s.WindowSeconds); err != nil {
		return fmt.Errorf("server.window_seconds: %w", err)
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if s.Publish.Subject == "" {
		s.Publish.Subject = DefaultSubject
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("server.log: %w", err)
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hrstress/hrstress/pkg/hrv"
	"github.com/hrstress/hrstress/pkg/logging"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScanInterval = 30 * time.Second
	DefaultShipInterval = 15 * time.Second
	DefaultBufferSize   = 1000
	DefaultAPIKeyHeader = "x-api-key"
)

// Source types.
const (
	SourceFile = "file"
	SourceHTTP = "http"
)

// Config is the agent's view of config.yaml. The `server:` key is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of hrstress-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// AgentID identifies this agent in shipped snapshots. Defaults to the hostname.
	AgentID string `yaml:"agent_id"`

	// ScanInterval controls how often each source is re-read.
	ScanInterval time.Duration `yaml:"scan_interval"`

	// ShipInterval is the pause between drain attempts while the server is unreachable.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of snapshots held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// WindowSeconds is forwarded to the analysis; see hrv.Options.
	WindowSeconds int `yaml:"window_seconds"`

	// IncludeSamples ships the cleaned samples with each snapshot so the
	// server can serve chart data.
	IncludeSamples bool `yaml:"include_samples"`

	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to hrstress-server.
	ServerAuth AuthConfig `yaml:"server_auth"`

	Log logging.Config `yaml:"log"`
}

// Source is one heart-rate table the agent analyses on every scan.
type Source struct {
	ID string `yaml:"id"`

	// Type is file or http.
	Type string `yaml:"type"`

	// Path is the CSV/TSV file for type file.
	Path string `yaml:"path"`

	// Endpoint is the URL serving CSV for type http.
	Endpoint string `yaml:"endpoint"`

	// TSColumn and HRColumn override column auto-detection.
	TSColumn string `yaml:"ts_column"`
	HRColumn string `yaml:"hr_column"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// Hints returns the column overrides for hrv.
func (s Source) Hints() hrv.Hints {
	return hrv.Hints{Timestamp: s.TSColumn, HeartRate: s.HRColumn}
}

// Origin returns the path or URL the source reads from.
func (s Source) Origin() string {
	if s.Type == SourceHTTP {
		return s.Endpoint
	}
	return s.Path
}

// AuthConfig specifies the authentication mode for an HTTP source or the
// server connection.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header carries the API key. Defaults to x-api-key.
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	TokenEnv string `yaml:"token_env"`

	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string { return getenv(a.KeyEnv) }

// Token returns the bearer token resolved from the environment.
func (a AuthConfig) Token() string { return getenv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return getenv(a.PasswordEnv) }

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if cfg.Agent.AgentID == "" {
		cfg.Agent.AgentID, _ = os.Hostname()
	}
	if cfg.Agent.ServerAuth.Header == "" {
		cfg.Agent.ServerAuth.Header = DefaultAPIKeyHeader
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScanInterval:  DefaultScanInterval,
			ShipInterval:  DefaultShipInterval,
			BufferSize:    DefaultBufferSize,
			WindowSeconds: hrv.DefaultWindowSeconds,
			Log:           logging.Defaults(),
		},
	}
}

func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.ScanInterval <= 0 {
		return fmt.Errorf("agent.scan_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if err := hrv.ValidateWindow(a.WindowSeconds); err != nil {
		return fmt.Errorf("agent.%w", err)
	}
	if _, err := logging.ParseLevel(a.Log.Level); err != nil {
		return fmt.Errorf("agent.log: %w", err)
	}
	if err := validateAuthMode(a.ServerAuth.Mode); err != nil {
		return fmt.Errorf("agent.server_auth: %w", err)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Type {
		case SourceFile:
			if src.Path == "" {
				return fmt.Errorf("sources[%d] %q: path is required", i, src.ID)
			}
		case SourceHTTP:
			if src.Endpoint == "" {
				return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		if err := validateAuthMode(src.Auth.Mode); err != nil {
			return fmt.Errorf("sources[%d] %q: %w", i, src.ID, err)
		}
	}
	return nil
}

func validateAuthMode(mode string) error {
	switch mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	}
	return fmt.Errorf("unknown auth mode %q", mode)
}

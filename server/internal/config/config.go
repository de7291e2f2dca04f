package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/obs/pkg/stance"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort = 8080
	DefaultRoot     = "public"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. Other top-level keys are ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the edge server listens on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Root is the directory of static pages served with stance classes.
	Root string `yaml:"root"`

	// Log selects the log handler.
	Log LogConfig `yaml:"log"`

	// Thresholds tunes bandwidth classification. Battery thresholds are
	// accepted for symmetry with the agent but have no effect: Client Hints
	// carry no battery state.
	Thresholds stance.Thresholds `yaml:"thresholds"`

	// Hints controls the Client Hints handshake.
	Hints HintsConfig `yaml:"hints"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Format is json (default) or text.
	Format string `yaml:"format"`

	// Level is debug | info (default) | warn | error.
	Level string `yaml:"level"`
}

// HintsConfig controls which response headers advertise Client Hints.
type HintsConfig struct {
	// AcceptCH sends Accept-CH / Vary so browsers include the hints on
	// subsequent requests (default true).
	AcceptCH bool `yaml:"accept_ch"`

	// CriticalCH additionally sends Critical-CH, asking the browser to retry
	// the first navigation with hints attached.
	CriticalCH bool `yaml:"critical_ch"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:   DefaultHTTPPort,
			Root:       DefaultRoot,
			Log:        LogConfig{Format: "json", Level: "info"},
			Thresholds: stance.DefaultThresholds(),
			Hints:      HintsConfig{AcceptCH: true},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.Root == "" {
		return fmt.Errorf("server.root must not be empty")
	}
	switch cfg.Server.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("server.log.format %q unknown: want json|text", cfg.Server.Log.Format)
	}
	switch cfg.Server.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log.level %q unknown: want debug|info|warn|error", cfg.Server.Log.Level)
	}
	if err := cfg.Server.Thresholds.Validate(); err != nil {
		return fmt.Errorf("server.thresholds: %w", err)
	}
	return nil
}

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/obs/pkg/stance"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultPollInterval      = 10 * time.Second
	DefaultBroadcastInterval = 30 * time.Second
	DefaultLevelScale        = 1.0
	DefaultAPIKeyHeader      = "X-API-Key"
	DefaultExpiryWarn        = 30 * 24 * time.Hour
)

// Signal source types.
const (
	SourceNone       = "none"
	SourceFeed       = "feed"
	SourceFile       = "file"
	SourcePrometheus = "prometheus"
	SourceSysfs      = "sysfs"
	SourceStatic     = "static"
)

// Config is the top-level agent configuration.
// Fields map 1:1 to config/agent.example.yaml.
type Config struct {
	// ObserveChanges subscribes to change notifications from the sources.
	// When false, the initial classification runs once and subscriptions
	// are skipped entirely. Default: true.
	ObserveChanges bool `yaml:"observe_changes"`

	// LogState logs the full state record after every pass.
	LogState bool `yaml:"log_state"`

	// Log selects the log handler.
	Log LogConfig `yaml:"log"`

	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// BroadcastInterval is the keepalive re-broadcast period of the WebSocket hub.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth protects the signal push endpoints.
	Auth APIAuthConfig `yaml:"auth"`

	// Thresholds are the tunable bandwidth and battery boundaries.
	Thresholds stance.Thresholds `yaml:"thresholds"`

	// Network configures the network signal channel.
	Network Source `yaml:"network"`

	// Battery configures the battery signal channel.
	Battery Source `yaml:"battery"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Format is json (default) or text.
	Format string `yaml:"format"`

	// Level is debug | info | warn | error.
	Level string `yaml:"level"`
}

// Source describes where one signal channel reads from.
type Source struct {
	// Type is one of: none | feed | file | prometheus | sysfs | static.
	Type string `yaml:"type"`

	// Path is the YAML document (file) or power-supply directory (sysfs).
	// An empty sysfs path picks the first BAT* supply.
	Path string `yaml:"path"`

	// Endpoint is the metrics URL scraped by the prometheus source.
	Endpoint string `yaml:"endpoint"`

	// Interval is the poll period for prometheus and sysfs sources.
	Interval time.Duration `yaml:"interval"`

	// Auth configures how the agent authenticates to the endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`

	// Metrics maps signals to metric names for the prometheus source.
	Metrics MetricNames `yaml:"metrics"`

	// LevelScale multiplies the raw battery level into the 0–1 range,
	// e.g. 0.01 for a percentage gauge.
	LevelScale float64 `yaml:"level_scale"`

	// Static holds fixed readings for the static source.
	Static StaticValues `yaml:"static"`
}

// MetricNames maps signals to Prometheus metric names.
type MetricNames struct {
	RTT         string `yaml:"rtt"`
	Downlink    string `yaml:"downlink"`
	SaveData    string `yaml:"save_data"`
	DownlinkMax string `yaml:"downlink_max"`
	Level       string `yaml:"level"`
	Charging    string `yaml:"charging"`
}

// StaticValues are fixed readings. Nil fields are unknown.
type StaticValues struct {
	SaveData bool     `yaml:"save_data"`
	RTT      *float64 `yaml:"rtt"`
	Downlink *float64 `yaml:"downlink"`
	Level    *float64 `yaml:"level"`
	Charging bool     `yaml:"charging"`
}

// AuthConfig specifies the authentication mode for a scraped endpoint.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields — used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header name to send the API key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	return fromEnv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	return fromEnv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	return fromEnv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// ExpiryWarn is how far ahead of NotAfter the startup certificate
	// check reports a source certificate as expiring. Zero disables the
	// check for this source.
	ExpiryWarn time.Duration `yaml:"expiry_warn"`
}

// ClientTLS builds the tls.Config used to reach the source endpoint. With
// auth mode mtls it carries the client key pair and, if set, the CA pool.
func (s Source) ClientTLS() (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: s.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if s.Auth.Mode != "mtls" {
		return cfg, nil
	}

	cert, err := tls.LoadX509KeyPair(s.Auth.CertFile, s.Auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	if s.Auth.CAFile != "" {
		caPEM, err := os.ReadFile(s.Auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", s.Auth.CAFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// APIAuthConfig configures authentication of the agent's own write endpoints.
type APIAuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header carries the key. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the expected API key resolved from the environment.
func (a APIAuthConfig) Key() string {
	return fromEnv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default.
func (a APIAuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values: both
// channels fed through the REST API, changes observed.
func Defaults() *Config {
	return &Config{
		ObserveChanges:    true,
		Log:               LogConfig{Format: "json", Level: "info"},
		HTTPPort:          DefaultHTTPPort,
		BroadcastInterval: DefaultBroadcastInterval,
		Auth:              APIAuthConfig{Mode: "none"},
		Thresholds:        stance.DefaultThresholds(),
		Network:           defaultSource(),
		Battery:           defaultSource(),
	}
}

func defaultSource() Source {
	return Source{
		Type:       SourceFeed,
		Interval:   DefaultPollInterval,
		LevelScale: DefaultLevelScale,
		TLS:        TLSConfig{ExpiryWarn: DefaultExpiryWarn},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	if cfg.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be positive")
	}
	switch cfg.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("auth.mode %q unknown: want apikey|none", cfg.Auth.Mode)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := validateSource("network", cfg.Network); err != nil {
		return err
	}
	if cfg.Network.Type == SourceSysfs {
		return fmt.Errorf("network: type sysfs only reports battery signals")
	}
	return validateSource("battery", cfg.Battery)
}

func validateSource(channel string, src Source) error {
	switch src.Type {
	case SourceNone, SourceFeed, SourceStatic, SourceSysfs, "":
	case SourceFile:
		if src.Path == "" {
			return fmt.Errorf("%s: path is required for type file", channel)
		}
	case SourcePrometheus:
		if src.Endpoint == "" {
			return fmt.Errorf("%s: endpoint is required for type prometheus", channel)
		}
		if channel == "network" && (src.Metrics.RTT == "" && src.Metrics.Downlink == "" && src.Metrics.SaveData == "") {
			return fmt.Errorf("%s: at least one of metrics.rtt, metrics.downlink, metrics.save_data is required", channel)
		}
		if channel == "battery" && src.Metrics.Level == "" {
			return fmt.Errorf("%s: metrics.level is required", channel)
		}
	default:
		return fmt.Errorf("%s: unknown type %q", channel, src.Type)
	}
	switch src.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("%s: unknown auth mode %q", channel, src.Auth.Mode)
	}
	if src.Interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", channel)
	}
	if src.LevelScale <= 0 {
		return fmt.Errorf("%s: level_scale must be positive", channel)
	}
	if src.TLS.ExpiryWarn < 0 {
		return fmt.Errorf("%s: tls.expiry_warn must not be negative", channel)
	}
	return nil
}

func fromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

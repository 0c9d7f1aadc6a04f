// Package config provides configuration structures and loading logic for shelf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polisai/shelf/pkg/domain"
)

// Widget names.
const (
	WidgetBooks        = "books"
	WidgetUpcoming     = "upcoming"
	WidgetMenu         = "menu"
	WidgetTestimonials = "testimonials"
)

// PolicyAvailableOnly hides records whose "available" field is not true.
const PolicyAvailableOnly = "available"

// Config holds the global configuration for shelf.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Widgets   WidgetsConfig   `yaml:"widgets"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port         int             `yaml:"port"`
	ReadTimeout  time.Duration   `yaml:"read_timeout"`
	WriteTimeout time.Duration   `yaml:"write_timeout"`
	RateLimits   RateLimitConfig `yaml:"rate_limits"`
}

// RateLimitConfig limits endpoints that trigger upstream work.
// A zero rate disables the limit.
type RateLimitConfig struct {
	RefreshPerSecond float64 `yaml:"refresh_per_second"`
	RefreshBurst     int     `yaml:"refresh_burst"`
	AuthPerSecond    float64 `yaml:"auth_per_second"`
	AuthBurst        int     `yaml:"auth_burst"`
}

// Address returns the listen address for the configured port.
func (c ServerConfig) Address() string {
	return ":" + strconv.Itoa(c.Port)
}

// WidgetsConfig holds one entry per widget.
type WidgetsConfig struct {
	Books        WidgetConfig       `yaml:"books"`
	Upcoming     WidgetConfig       `yaml:"upcoming"`
	Menu         WidgetConfig       `yaml:"menu"`
	Testimonials TestimonialsConfig `yaml:"testimonials"`
}

// WidgetConfig describes where a widget reads its records and how many it keeps.
// URL and Path are exclusive; with neither set the bundled resource is used.
type WidgetConfig struct {
	URL      string        `yaml:"url,omitempty"`
	Path     string        `yaml:"path,omitempty"`
	Envelope string        `yaml:"envelope,omitempty"`
	Limit    int           `yaml:"limit,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	// Fallback applies the last good snapshot when a load fails.
	Fallback bool   `yaml:"fallback,omitempty"`
	Policy   string `yaml:"policy,omitempty"`
	// LoadOnStart triggers the first load when the server starts.
	LoadOnStart bool          `yaml:"load_on_start,omitempty"`
	Breaker     BreakerConfig `yaml:"breaker,omitempty"`
}

// BreakerConfig short-circuits a remote source after consecutive failures.
// A zero MaxFailures disables the breaker.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures,omitempty"`
	Cooldown    time.Duration `yaml:"cooldown,omitempty"`
}

// TestimonialsConfig configures the testimonial carousel.
type TestimonialsConfig struct {
	Path       string `yaml:"path,omitempty"`
	IntervalMS int    `yaml:"interval_ms"`
	Autoplay   bool   `yaml:"autoplay"`
}

// Interval returns the auto-advance period.
func (c TestimonialsConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// AuthConfig configures the in-memory identity provider.
type AuthConfig struct {
	BcryptCost int `yaml:"bcrypt_cost,omitempty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string            `yaml:"service_name"`
	Environment  string            `yaml:"environment,omitempty"`
	OTLPEndpoint string            `yaml:"otlp_endpoint,omitempty"`
	Insecure     bool              `yaml:"insecure,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimits: RateLimitConfig{
				RefreshPerSecond: 1,
				RefreshBurst:     5,
				AuthPerSecond:    5,
				AuthBurst:        10,
			},
		},
		Widgets: WidgetsConfig{
			Books: WidgetConfig{
				URL:         "https://gutendex.com/books/",
				Envelope:    "results",
				Limit:       4,
				Timeout:     10 * time.Second,
				Fallback:    true,
				LoadOnStart: true,
				Breaker: BreakerConfig{
					MaxFailures: 3,
					Cooldown:    30 * time.Second,
				},
			},
			Upcoming: WidgetConfig{
				Envelope:    "bare",
				LoadOnStart: true,
			},
			Menu: WidgetConfig{
				Envelope:    "bare",
				Policy:      PolicyAvailableOnly,
				LoadOnStart: true,
			},
			Testimonials: TestimonialsConfig{
				IntervalMS: 5000,
				Autoplay:   true,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "shelf",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file on top of DefaultConfig, expands
// ${VAR} references, applies environment overrides and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse expands environment variables in data and decodes it into cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if strings.TrimSpace(expanded) == "" {
		return nil
	}
	return yaml.Unmarshal([]byte(expanded), cfg)
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SHELF_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("SHELF_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("SHELF_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("SHELF_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("SHELF_BOOKS_URL"); val != "" {
		cfg.Widgets.Books.URL = val
		cfg.Widgets.Books.Path = ""
	}
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port", fmt.Sprintf("%d is not a valid port", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return invalid("server", "timeouts must not be negative")
	}
	rl := c.Server.RateLimits
	if rl.RefreshPerSecond < 0 || rl.AuthPerSecond < 0 || rl.RefreshBurst < 0 || rl.AuthBurst < 0 {
		return invalid("server.rate_limits", "must not be negative")
	}

	widgets := map[string]WidgetConfig{
		WidgetBooks:    c.Widgets.Books,
		WidgetUpcoming: c.Widgets.Upcoming,
		WidgetMenu:     c.Widgets.Menu,
	}
	for _, name := range []string{WidgetBooks, WidgetUpcoming, WidgetMenu} {
		if err := widgets[name].Validate(); err != nil {
			return fmt.Errorf("widgets.%s: %w", name, err)
		}
	}

	if c.Widgets.Testimonials.IntervalMS <= 0 {
		return invalid("widgets.testimonials.interval_ms", "must be positive")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return invalid("auth.bcrypt_cost", "must be between 4 and 31")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path", "must start with /")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	return nil
}

// Validate performs validation of one widget entry.
func (c WidgetConfig) Validate() error {
	if c.URL != "" && c.Path != "" {
		return invalid("url", "url and path are mutually exclusive")
	}
	switch c.Envelope {
	case "", "results", "bare", "auto":
	default:
		return invalid("envelope", fmt.Sprintf("unknown envelope %q", c.Envelope))
	}
	if c.Limit < 0 {
		return invalid("limit", "must not be negative")
	}
	if c.Timeout < 0 {
		return invalid("timeout", "must not be negative")
	}
	if c.Breaker.MaxFailures < 0 || c.Breaker.Cooldown < 0 {
		return invalid("breaker", "must not be negative")
	}
	switch c.Policy {
	case "", PolicyAvailableOnly:
	default:
		return invalid("policy", fmt.Sprintf("unknown policy %q", c.Policy))
	}
	return nil
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrConfigInvalid, field, reason)
}

// IsInvalid reports whether err is a validation failure.
func IsInvalid(err error) bool {
	return errors.Is(err, domain.ErrConfigInvalid)
}

// Package config loads dashboard settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, a .env file in
// the working directory, then DIVYA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/divyadrishti/internal/model"
	"github.com/abelbrown/divyadrishti/internal/stream"
)

// Config is the root configuration.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	API     APIConfig     `yaml:"api"`
	Stream  StreamConfig  `yaml:"stream"`
	UI      UIConfig      `yaml:"ui"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig configures the HTTP collaborator.
type APIConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	Rate       float64       `yaml:"rate"` // requests per second
	Burst      int           `yaml:"burst"`
	Retries    int           `yaml:"retries"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
}

// StreamConfig configures the live streams.
type StreamConfig struct {
	Transport    string        `yaml:"transport"` // "sse" or "ws"
	TrendingPath string        `yaml:"trending_path"`
	MetricsPath  string        `yaml:"metrics_path"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// UIConfig holds view defaults.
type UIConfig struct {
	Lens          string `yaml:"lens"`
	Window        string `yaml:"window"`
	TrendingLimit int    `yaml:"trending_limit"`
	MetricsLimit  int    `yaml:"metrics_limit"`
}

// JournalConfig enables recording of raw stream payloads. Empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		API: APIConfig{
			URL:        "http://localhost:8000",
			Timeout:    10 * time.Second,
			Rate:       4,
			Burst:      4,
			Retries:    3,
			BackoffMin: 250 * time.Millisecond,
			BackoffMax: 4 * time.Second,
		},
		Stream: StreamConfig{
			Transport:    string(stream.SSE),
			TrendingPath: stream.Path(stream.Trending),
			MetricsPath:  stream.Path(stream.Metrics),
			ReconnectMin: 500 * time.Millisecond,
			ReconnectMax: 30 * time.Second,
		},
		UI: UIConfig{
			Lens:          string(model.LensTop),
			Window:        string(model.WindowToday),
			TrendingLimit: 30,
			MetricsLimit:  20,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".divyadrishti"
	}
	return filepath.Join(home, ".divyadrishti")
}

// DefaultPath returns ~/.divyadrishti/config.yaml.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load builds a Config from path (a missing file is not an error), the .env
// file and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	var env overlay
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	env.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay lists every environment override. Nil means unset.
type overlay struct {
	DataDir         *string        `envconfig:"DIVYA_DATA_DIR"`
	APIURL          *string        `envconfig:"DIVYA_API_URL"`
	APITimeout      *time.Duration `envconfig:"DIVYA_API_TIMEOUT"`
	APIRate         *float64       `envconfig:"DIVYA_API_RATE"`
	APIBurst        *int           `envconfig:"DIVYA_API_BURST"`
	APIRetries      *int           `envconfig:"DIVYA_API_RETRIES"`
	APIBackoffMin   *time.Duration `envconfig:"DIVYA_API_BACKOFF_MIN"`
	APIBackoffMax   *time.Duration `envconfig:"DIVYA_API_BACKOFF_MAX"`
	StreamTransport *string        `envconfig:"DIVYA_STREAM_TRANSPORT"`
	ReconnectMin    *time.Duration `envconfig:"DIVYA_STREAM_RECONNECT_MIN"`
	ReconnectMax    *time.Duration `envconfig:"DIVYA_STREAM_RECONNECT_MAX"`
	Lens            *string        `envconfig:"DIVYA_LENS"`
	Window          *string        `envconfig:"DIVYA_WINDOW"`
	JournalPath     *string        `envconfig:"DIVYA_JOURNAL_PATH"`
	MetricsAddr     *string        `envconfig:"DIVYA_METRICS_ADDR"`
}

func (o overlay) apply(c *Config) {
	set(&c.DataDir, o.DataDir)
	set(&c.API.URL, o.APIURL)
	set(&c.API.Timeout, o.APITimeout)
	set(&c.API.Rate, o.APIRate)
	set(&c.API.Burst, o.APIBurst)
	set(&c.API.Retries, o.APIRetries)
	set(&c.API.BackoffMin, o.APIBackoffMin)
	set(&c.API.BackoffMax, o.APIBackoffMax)
	set(&c.Stream.Transport, o.StreamTransport)
	set(&c.Stream.ReconnectMin, o.ReconnectMin)
	set(&c.Stream.ReconnectMax, o.ReconnectMax)
	set(&c.UI.Lens, o.Lens)
	set(&c.UI.Window, o.Window)
	set(&c.Journal.Path, o.JournalPath)
	set(&c.Metrics.Addr, o.MetricsAddr)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.url %q: must be an absolute http(s) URL", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.Rate <= 0 || c.API.Burst <= 0 {
		return fmt.Errorf("api.rate and api.burst must be positive")
	}
	if c.API.Retries < 0 {
		return fmt.Errorf("api.retries must not be negative")
	}
	if c.API.BackoffMin <= 0 || c.API.BackoffMax < c.API.BackoffMin {
		return fmt.Errorf("api backoff range %s..%s is invalid", c.API.BackoffMin, c.API.BackoffMax)
	}
	if !stream.Transport(c.Stream.Transport).Valid() {
		return fmt.Errorf("stream.transport %q: want sse or ws", c.Stream.Transport)
	}
	if c.Stream.ReconnectMin <= 0 || c.Stream.ReconnectMax < c.Stream.ReconnectMin {
		return fmt.Errorf("stream reconnect range %s..%s is invalid", c.Stream.ReconnectMin, c.Stream.ReconnectMax)
	}
	if _, err := model.ParseLens(c.UI.Lens); err != nil {
		return fmt.Errorf("ui.lens: %w", err)
	}
	if _, err := model.ParseWindow(c.UI.Window); err != nil {
		return fmt.Errorf("ui.window: %w", err)
	}
	return nil
}

// Lens returns the configured default lens. Validate guarantees it parses.
func (c *Config) Lens() model.Lens {
	l, _ := model.ParseLens(c.UI.Lens)
	return l
}

// Window returns the configured default window.
func (c *Config) Window() model.Window {
	w, _ := model.ParseWindow(c.UI.Window)
	return w
}

// EventsPath is the JSONL event log location.
func (c *Config) EventsPath() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}

// LogDir is where the diagnostic log files go.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

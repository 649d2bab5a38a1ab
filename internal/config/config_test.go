package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/divyadrishti/internal/model"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != Default().API.URL || cfg.Lens() != model.LensTop || cfg.Window() != model.WindowToday {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
data_dir: /tmp/divya
api:
  url: https://api.example.com
  timeout: 3s
  retries: 1
stream:
  transport: ws
ui:
  lens: rising
  window: week
journal:
  path: /tmp/divya/journal.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "https://api.example.com" || cfg.API.Timeout != 3*time.Second || cfg.API.Retries != 1 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.API.Rate != 4 {
		t.Errorf("unset field lost its default: rate = %v", cfg.API.Rate)
	}
	if cfg.Stream.Transport != "ws" || cfg.Lens() != model.LensRising || cfg.Window() != model.WindowWeek {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.EventsPath() != "/tmp/divya/events.jsonl" || cfg.LogDir() != "/tmp/divya/logs" {
		t.Errorf("paths = %s %s", cfg.EventsPath(), cfg.LogDir())
	}
	if cfg.Journal.Path != "/tmp/divya/journal.db" {
		t.Errorf("journal = %q", cfg.Journal.Path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "api:\n  url: https://file.example\n")
	t.Setenv("DIVYA_API_URL", "http://env.example:9000")
	t.Setenv("DIVYA_STREAM_TRANSPORT", "ws")
	t.Setenv("DIVYA_METRICS_ADDR", ":9464")
	t.Setenv("DIVYA_API_BACKOFF_MAX", "9s")
	t.Setenv("DIVYA_LENS", "heated")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "http://env.example:9000" {
		t.Errorf("url = %q", cfg.API.URL)
	}
	if cfg.Stream.Transport != "ws" || cfg.Metrics.Addr != ":9464" {
		t.Errorf("stream=%q metrics=%q", cfg.Stream.Transport, cfg.Metrics.Addr)
	}
	if cfg.API.BackoffMax != 9*time.Second {
		t.Errorf("backoff max = %s", cfg.API.BackoffMax)
	}
	if cfg.Lens() != model.LensHeated {
		t.Errorf("lens = %s", cfg.Lens())
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "api: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative url", func(c *Config) { c.API.URL = "localhost:8000" }, "api.url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"zero rate", func(c *Config) { c.API.Rate = 0 }, "api.rate"},
		{"negative retries", func(c *Config) { c.API.Retries = -1 }, "api.retries"},
		{"inverted backoff", func(c *Config) { c.API.BackoffMax = time.Millisecond }, "backoff"},
		{"transport", func(c *Config) { c.Stream.Transport = "grpc" }, "stream.transport"},
		{"reconnect", func(c *Config) { c.Stream.ReconnectMin = 0 }, "reconnect"},
		{"lens", func(c *Config) { c.UI.Lens = "spicy" }, "ui.lens"},
		{"window", func(c *Config) { c.UI.Window = "year" }, "ui.window"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Source.BaseURL != "https://clients.eurest.ch/kaserne/de/Timeout" {
		t.Fatalf("unexpected default base url %q", cfg.Source.BaseURL)
	}
	if len(cfg.Classify.Vegi) == 0 || len(cfg.Classify.Exclude) == 0 {
		t.Fatalf("expected default classify keyword lists to be populated")
	}
	if len(cfg.Scan.Selectors) == 0 {
		t.Fatalf("expected default scan selectors to be populated")
	}
	if cfg.Pattern.MinPrice >= cfg.Pattern.MaxPrice {
		t.Fatalf("expected sane default price bounds, got %v..%v", cfg.Pattern.MinPrice, cfg.Pattern.MaxPrice)
	}
	if got := cfg.HTTPTimeout(); got != 15*time.Second {
		t.Fatalf("expected default http timeout 15s, got %v", got)
	}
	if got := cfg.RefreshInterval(); got != 10*time.Minute {
		t.Fatalf("expected default refresh interval 10m, got %v", got)
	}
	if cfg.Source.Timezone != "Europe/Zurich" {
		t.Fatalf("unexpected default timezone %q", cfg.Source.Timezone)
	}
	if !strings.HasPrefix(cfg.Source.AcceptLanguage, "de-CH") {
		t.Fatalf("unexpected default accept language %q", cfg.Source.AcceptLanguage)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("unexpected default log level %q", cfg.Logging.Level)
	}
	if cfg.Headless.WaitSelector == "" {
		t.Fatal("expected a default wait selector")
	}
	if cfg.Headless.MinVisibleText != 600 {
		t.Fatalf("unexpected default visible-text threshold %d", cfg.Headless.MinVisibleText)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
source:
  base_url: https://menu.example.ch/lunch
  api_paths: ["/feed.json"]
  restaurant: Beispiel
  location: Beispielweg 1, 3000 Bern
http:
  timeout_seconds: 45
  user_agent: test-agent
  respect_robots: false
headless:
  enabled: true
  nav_timeout_seconds: 20
  max_parallel: 1
classify:
  vegi: ["gemüse"]
  hit: ["aktion"]
  exclude: ["bar"]
  headers: ["menu"]
refresh:
  interval_minutes: 5
  min_interval_seconds: 10
store:
  provider: bolt
  bolt_path: /tmp/menus.db
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Source.Restaurant != "Beispiel" {
		t.Fatalf("expected source overrides to apply, got %+v", cfg.Source)
	}
	if cfg.HTTP.UserAgent != "test-agent" || cfg.HTTP.RespectRobots {
		t.Fatalf("expected http overrides to apply, got %+v", cfg.HTTP)
	}
	if !cfg.Headless.Enabled || cfg.Headless.MaxParallel != 1 {
		t.Fatalf("expected headless overrides to apply, got %+v", cfg.Headless)
	}
	rules := cfg.Rules()
	if len(rules.Vegi) != 1 || rules.Vegi[0] != "gemüse" {
		t.Fatalf("expected classify overrides to apply, got %+v", rules)
	}
	if cfg.Store.Provider != "bolt" || cfg.Store.BoltPath != "/tmp/menus.db" {
		t.Fatalf("expected store overrides to apply, got %+v", cfg.Store)
	}
	if got := cfg.RefreshInterval(); got != 5*time.Minute {
		t.Fatalf("expected refresh interval 5m, got %v", got)
	}
	if got := cfg.MinRefreshInterval(); got != 10*time.Second {
		t.Fatalf("expected min refresh interval 10s, got %v", got)
	}
	endpoints := cfg.APIEndpoints()
	if len(endpoints) != 1 || endpoints[0] != "https://menu.example.ch/lunch/feed.json" {
		t.Fatalf("expected api endpoints to join base and paths, got %v", endpoints)
	}
}

func TestPageURLAndEndpoints(t *testing.T) {
	t.Parallel()

	cfg := Config{Source: SourceConfig{
		BaseURL:  "https://example.ch/kaserne/",
		PagePath: "/de/Timeout",
		APIPaths: []string{"/api/menu", "menu.json", ""},
	}}

	if got := cfg.PageURL(); got != "https://example.ch/kaserne/de/Timeout" {
		t.Fatalf("unexpected page url %q", got)
	}
	endpoints := cfg.APIEndpoints()
	want := []string{"https://example.ch/kaserne/api/menu", "https://example.ch/kaserne/menu.json"}
	if len(endpoints) != len(want) {
		t.Fatalf("expected %d endpoints, got %v", len(want), endpoints)
	}
	for i := range want {
		if endpoints[i] != want[i] {
			t.Fatalf("endpoint %d: expected %q, got %q", i, want[i], endpoints[i])
		}
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Source:  SourceConfig{BaseURL: "https://example.ch"},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Pattern: PatternConfig{MinPrice: 5, MaxPrice: 50},
		Refresh: RefreshConfig{IntervalMinutes: 10, TriggerQueueDepth: 16},
		Store:   StoreConfig{Provider: "memory"},
		Pages:   PagesConfig{Provider: "noop"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "missing base url",
			cfg: func() Config {
				c := base
				c.Source.BaseURL = ""
				return c
			}(),
			want: "source.base_url",
		},
		{
			name: "base url without scheme",
			cfg: func() Config {
				c := base
				c.Source.BaseURL = "clients.eurest.ch"
				return c
			}(),
			want: "source.base_url",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "headless missing nav timeout",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.NavTimeoutSec = 0
				return c
			}(),
			want: "headless.nav_timeout_seconds",
		},
		{
			name: "inverted price bounds",
			cfg: func() Config {
				c := base
				c.Pattern.MaxPrice = 1
				return c
			}(),
			want: "pattern.max_price",
		},
		{
			name: "invalid refresh interval",
			cfg: func() Config {
				c := base
				c.Refresh.IntervalMinutes = 0
				return c
			}(),
			want: "refresh.interval_minutes",
		},
		{
			name: "unknown store provider",
			cfg: func() Config {
				c := base
				c.Store.Provider = "redis"
				return c
			}(),
			want: "store.provider",
		},
		{
			name: "bolt store missing path",
			cfg: func() Config {
				c := base
				c.Store.Provider = "bolt"
				c.Store.BoltPath = ""
				return c
			}(),
			want: "store.bolt_path",
		},
		{
			name: "unknown pages provider",
			cfg: func() Config {
				c := base
				c.Pages.Provider = "s3"
				return c
			}(),
			want: "pages.provider",
		},
		{
			name: "gcs pages missing bucket",
			cfg: func() Config {
				c := base
				c.Pages.Provider = "gcs"
				c.Pages.GCSBucket = ""
				return c
			}(),
			want: "pages.gcs_bucket",
		},
		{
			name: "negative pages retention",
			cfg: func() Config {
				c := base
				c.Pages.RetentionDays = -3
				return c
			}(),
			want: "pages.retention_days",
		},
		{
			name: "pubsub topic without project",
			cfg: func() Config {
				c := base
				c.PubSub.TopicName = "menus"
				return c
			}(),
			want: "pubsub.project_id",
		},
		{
			name: "auth enabled without key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

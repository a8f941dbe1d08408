// Package config loads and validates menuwatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lunchbot/menuwatch/internal/classify"
	"github.com/lunchbot/menuwatch/internal/extract/domscan"
	"github.com/lunchbot/menuwatch/internal/extract/pattern"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Pattern  PatternConfig  `mapstructure:"pattern"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Store    StoreConfig    `mapstructure:"store"`
	DB       DBConfig       `mapstructure:"db"`
	Pages    PagesConfig    `mapstructure:"pages"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig identifies the restaurant page being watched.
type SourceConfig struct {
	BaseURL    string   `mapstructure:"base_url"`
	PagePath   string   `mapstructure:"page_path"`
	APIPaths   []string `mapstructure:"api_paths"`
	Restaurant string   `mapstructure:"restaurant"`
	Location   string   `mapstructure:"location"`
	// Timezone fixes the menu-day boundary; snapshots are stamped in it.
	Timezone string `mapstructure:"timezone"`
	// AcceptLanguage is sent on every outbound request so the source
	// serves the localized menu.
	AcceptLanguage string `mapstructure:"accept_language"`
}

// HTTPConfig configures outbound page fetches.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig tunes the headless-browser rendering path.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	// MinVisibleText is the detector threshold: static pages with less
	// visible text than this are re-fetched through the browser.
	MinVisibleText int `mapstructure:"min_visible_text"`
	// WaitSelector is the element the browser waits for before capturing
	// the DOM.
	WaitSelector string `mapstructure:"wait_selector"`
}

// ClassifyConfig holds the keyword lists driving category assignment.
type ClassifyConfig struct {
	Vegi    []string `mapstructure:"vegi"`
	Hit     []string `mapstructure:"hit"`
	Exclude []string `mapstructure:"exclude"`
	Headers []string `mapstructure:"headers"`
}

// ScanConfig holds the CSS selector lists used by the DOM scan strategy.
type ScanConfig struct {
	Selectors      []string `mapstructure:"selectors"`
	TitleSelector  string   `mapstructure:"title_selector"`
	DescSelector   string   `mapstructure:"desc_selector"`
	PriceSelector  string   `mapstructure:"price_selector"`
	SkipContainers []string `mapstructure:"skip_containers"`
}

// PatternConfig bounds the pattern-match strategy's price detection.
type PatternConfig struct {
	MinPrice float64 `mapstructure:"min_price"`
	MaxPrice float64 `mapstructure:"max_price"`
}

// RefreshConfig controls the background refresh loop.
type RefreshConfig struct {
	IntervalMinutes    int  `mapstructure:"interval_minutes"`
	MinIntervalSeconds int  `mapstructure:"min_interval_seconds"`
	TriggerQueueDepth  int  `mapstructure:"trigger_queue_depth"`
	RunOnStart         bool `mapstructure:"run_on_start"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	BoltPath string `mapstructure:"bolt_path"`
}

// DBConfig holds Postgres settings for snapshot history.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PagesConfig selects the raw page archive backend.
type PagesConfig struct {
	Provider    string `mapstructure:"provider"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
	// RetentionDays prunes local day directories older than this. Zero
	// keeps everything.
	RetentionDays int `mapstructure:"retention_days"`
}

// PubSubConfig configures snapshot event publication.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AuthConfig guards the HTTP API with a shared key when enabled.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level is a zap level name; empty means info.
	Level string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional config file, and
// MENUWATCH_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("MENUWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	rules := classify.DefaultRules()
	scan := domscan.DefaultConfig()
	pat := pattern.DefaultConfig()

	v.SetDefault("server.port", 8080)

	v.SetDefault("source.base_url", "https://clients.eurest.ch/kaserne/de/Timeout")
	v.SetDefault("source.page_path", "")
	v.SetDefault("source.api_paths", []string{"/api/menu", "/menu.json"})
	v.SetDefault("source.restaurant", "Timeout Kaserne")
	v.SetDefault("source.location", "Papiermühlestrasse 15, 3014 Bern")
	v.SetDefault("source.timezone", "Europe/Zurich")
	v.SetDefault("source.accept_language", "de-CH,de;q=0.9,en;q=0.5")

	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "menuwatch/1.0")
	v.SetDefault("http.respect_robots", true)

	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.min_visible_text", 600)
	v.SetDefault("headless.wait_selector", ".menu-item, .dish, .meal")

	v.SetDefault("classify.vegi", rules.Vegi)
	v.SetDefault("classify.hit", rules.Hit)
	v.SetDefault("classify.exclude", rules.Exclude)
	v.SetDefault("classify.headers", rules.Headers)

	v.SetDefault("scan.selectors", scan.Selectors)
	v.SetDefault("scan.title_selector", scan.TitleSelector)
	v.SetDefault("scan.desc_selector", scan.DescSelector)
	v.SetDefault("scan.price_selector", scan.PriceSelector)
	v.SetDefault("scan.skip_containers", scan.SkipContainers)

	v.SetDefault("pattern.min_price", pat.MinPrice)
	v.SetDefault("pattern.max_price", pat.MaxPrice)

	v.SetDefault("refresh.interval_minutes", 10)
	v.SetDefault("refresh.min_interval_seconds", 30)
	v.SetDefault("refresh.trigger_queue_depth", 16)
	v.SetDefault("refresh.run_on_start", true)

	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.bolt_path", "menuwatch.db")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "menu_snapshots")

	v.SetDefault("pages.provider", "noop")
	v.SetDefault("pages.local_dir", "pages")
	v.SetDefault("pages.gcs_bucket", "")
	v.SetDefault("pages.prefix", "raw")
	v.SetDefault("pages.content_type", "text/html; charset=utf-8")
	v.SetDefault("pages.retention_days", 0)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate checks the loaded configuration and reports the first problem.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must not be empty")
	}
	if !strings.HasPrefix(c.Source.BaseURL, "http://") && !strings.HasPrefix(c.Source.BaseURL, "https://") {
		return fmt.Errorf("source.base_url must start with http:// or https://, got %q", c.Source.BaseURL)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.Headless.Enabled && c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be positive, got %d", c.Headless.NavTimeoutSec)
	}
	if c.Headless.MaxParallel < 0 {
		return fmt.Errorf("headless.max_parallel must not be negative, got %d", c.Headless.MaxParallel)
	}
	if c.Pattern.MinPrice < 0 {
		return fmt.Errorf("pattern.min_price must not be negative, got %v", c.Pattern.MinPrice)
	}
	if c.Pattern.MaxPrice <= c.Pattern.MinPrice {
		return fmt.Errorf("pattern.max_price must exceed pattern.min_price, got %v <= %v", c.Pattern.MaxPrice, c.Pattern.MinPrice)
	}
	if c.Refresh.IntervalMinutes <= 0 {
		return fmt.Errorf("refresh.interval_minutes must be positive, got %d", c.Refresh.IntervalMinutes)
	}
	if c.Refresh.TriggerQueueDepth <= 0 {
		return fmt.Errorf("refresh.trigger_queue_depth must be positive, got %d", c.Refresh.TriggerQueueDepth)
	}
	switch c.Store.Provider {
	case "memory", "bolt":
	default:
		return fmt.Errorf("store.provider must be one of memory, bolt, got %q", c.Store.Provider)
	}
	if c.Store.Provider == "bolt" && c.Store.BoltPath == "" {
		return fmt.Errorf("store.bolt_path must not be empty when store.provider is bolt")
	}
	switch c.Pages.Provider {
	case "noop", "memory", "local", "gcs":
	default:
		return fmt.Errorf("pages.provider must be one of noop, memory, local, gcs, got %q", c.Pages.Provider)
	}
	if c.Pages.Provider == "local" && c.Pages.LocalDir == "" {
		return fmt.Errorf("pages.local_dir must not be empty when pages.provider is local")
	}
	if c.Pages.Provider == "gcs" && c.Pages.GCSBucket == "" {
		return fmt.Errorf("pages.gcs_bucket must not be empty when pages.provider is gcs")
	}
	if c.Pages.RetentionDays < 0 {
		return fmt.Errorf("pages.retention_days must not be negative, got %d", c.Pages.RetentionDays)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must not be empty when pubsub.topic_name is set")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must not be empty when auth.enabled is true")
	}
	return nil
}

// PageURL returns the full URL of the menu page.
func (c *Config) PageURL() string {
	return strings.TrimSuffix(c.Source.BaseURL, "/") + c.Source.PagePath
}

// APIEndpoints returns the absolute URLs the API probe strategy should try,
// in order.
func (c *Config) APIEndpoints() []string {
	base := strings.TrimSuffix(c.Source.BaseURL, "/")
	endpoints := make([]string, 0, len(c.Source.APIPaths))
	for _, p := range c.Source.APIPaths {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		endpoints = append(endpoints, base+p)
	}
	return endpoints
}

// HTTPTimeout returns the outbound fetch timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// HeadlessNavTimeout returns the headless navigation timeout as a duration.
func (c *Config) HeadlessNavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// RefreshInterval returns the background refresh period as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalMinutes) * time.Minute
}

// MinRefreshInterval returns the shortest allowed gap between two refresh
// runs as a duration.
func (c *Config) MinRefreshInterval() time.Duration {
	return time.Duration(c.Refresh.MinIntervalSeconds) * time.Second
}

// Rules returns the classifier keyword rules described by the config.
func (c *Config) Rules() classify.Rules {
	return classify.Rules{
		Vegi:    c.Classify.Vegi,
		Hit:     c.Classify.Hit,
		Exclude: c.Classify.Exclude,
		Headers: c.Classify.Headers,
	}
}

// ScanSelectors returns the DOM scan configuration described by the config.
func (c *Config) ScanSelectors() domscan.Config {
	return domscan.Config{
		Selectors:      c.Scan.Selectors,
		TitleSelector:  c.Scan.TitleSelector,
		DescSelector:   c.Scan.DescSelector,
		PriceSelector:  c.Scan.PriceSelector,
		SkipContainers: c.Scan.SkipContainers,
	}
}

// PatternBounds returns the pattern-match configuration described by the
// config.
func (c *Config) PatternBounds() pattern.Config {
	return pattern.Config{
		MinPrice: c.Pattern.MinPrice,
		MaxPrice: c.Pattern.MaxPrice,
	}
}

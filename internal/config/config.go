// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Store     StoreConfig     `mapstructure:"store"`
	Export    ExportConfig    `mapstructure:"export"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig governs the listing range and shared fetch behavior.
type CrawlerConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	StartPage   int    `mapstructure:"start_page"`
	EndPage     int    `mapstructure:"end_page"`
	Concurrency int    `mapstructure:"concurrency"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
	BackoffMs      int `mapstructure:"backoff_ms"`
}

// HeadlessConfig configures the rendering collaborator.
type HeadlessConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	MaxParallel        int     `mapstructure:"max_parallel"`
	NavTimeoutSeconds  int     `mapstructure:"nav_timeout_seconds"`
	SelectorWaitSecond int     `mapstructure:"selector_wait_seconds"`
	SettleMs           int     `mapstructure:"settle_ms"`
	DomainQPS          float64 `mapstructure:"domain_qps"`
}

// SelectorsConfig holds the declarative CSS selectors for both crawlers.
type SelectorsConfig struct {
	Listing ListingSelectorsConfig `mapstructure:"listing"`
	Post    PostSelectorsConfig    `mapstructure:"post"`
}

// ListingSelectorsConfig locates metadata inside listing pages.
type ListingSelectorsConfig struct {
	PostContainer string `mapstructure:"post_container"`
	Title         string `mapstructure:"title"`
	PublishedAt   string `mapstructure:"published_at"`
	PostURL       string `mapstructure:"post_url"`
}

// PostSelectorsConfig locates content inside post pages.
type PostSelectorsConfig struct {
	ContentContainers []string `mapstructure:"content_containers"`
	AssetHost         string   `mapstructure:"asset_host"`
}

// StoreConfig sets the metadata persistence path.
type StoreConfig struct {
	MetadataPath string `mapstructure:"metadata_path"`
}

// ExportConfig controls Markdown export.
type ExportConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	DownloadImages bool   `mapstructure:"download_images"`
}

// MonitorConfig controls the optional health/metrics HTTP surface.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_page", 1)
	v.SetDefault("crawler.end_page", 1)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; CaesarBot/1.0; +https://example.invalid)")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_ms", 300)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.selector_wait_seconds", 5)
	v.SetDefault("headless.settle_ms", 500)
	v.SetDefault("headless.domain_qps", 0)
	v.SetDefault("selectors.listing.post_container", "div.article")
	v.SetDefault("selectors.listing.title", "h2 a")
	v.SetDefault("selectors.listing.published_at", "li.publish")
	v.SetDefault("selectors.listing.post_url", "h2 a")
	v.SetDefault("selectors.post.content_containers", []string{"#article-content-inner", ".article-content-inner"})
	v.SetDefault("selectors.post.asset_host", "pimg.tw")
	v.SetDefault("store.metadata_path", "posts.jsonl")
	v.SetDefault("export.output_dir", "posts")
	v.SetDefault("export.download_images", false)
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url must be set")
	}
	if c.Crawler.StartPage < 1 {
		return fmt.Errorf("crawler.start_page must be >= 1")
	}
	if c.Crawler.EndPage < c.Crawler.StartPage {
		return fmt.Errorf("crawler.end_page must be >= crawler.start_page")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Selectors.Listing.PostContainer == "" || c.Selectors.Listing.Title == "" ||
		c.Selectors.Listing.PublishedAt == "" || c.Selectors.Listing.PostURL == "" {
		return fmt.Errorf("selectors.listing fields must all be set")
	}
	if len(c.Selectors.Post.ContentContainers) == 0 {
		return fmt.Errorf("selectors.post.content_containers must include at least one selector")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Store.MetadataPath == "" {
		return fmt.Errorf("store.metadata_path must be set")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir must be set")
	}
	if c.Monitor.Enabled && c.Monitor.Port <= 0 {
		return fmt.Errorf("monitor.port must be > 0 when monitor is enabled")
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff converts the retry backoff base into a duration.
func (c Config) Backoff() time.Duration {
	return time.Duration(c.HTTP.BackoffMs) * time.Millisecond
}

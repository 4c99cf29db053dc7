package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
crawler:
  base_url: https://example.pixnet.net/blog
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://example.pixnet.net/blog", cfg.Crawler.BaseURL)
	require.Equal(t, 1, cfg.Crawler.StartPage)
	require.Equal(t, 5, cfg.Crawler.Concurrency)
	require.Equal(t, "div.article", cfg.Selectors.Listing.PostContainer)
	require.Equal(t, "h2 a", cfg.Selectors.Listing.Title)
	require.Equal(t, []string{"#article-content-inner", ".article-content-inner"}, cfg.Selectors.Post.ContentContainers)
	require.Equal(t, "pimg.tw", cfg.Selectors.Post.AssetHost)
	require.Equal(t, 15*time.Second, cfg.Timeout())
	require.Equal(t, 300*time.Millisecond, cfg.Backoff())
	require.False(t, cfg.Headless.Enabled)
	require.Equal(t, "posts.jsonl", cfg.Store.MetadataPath)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
crawler:
  base_url: https://other.pixnet.net/blog
  start_page: 3
  end_page: 9
  concurrency: 2
http:
  timeout_seconds: 30
  max_retries: 5
  backoff_ms: 100
headless:
  enabled: true
  max_parallel: 4
selectors:
  post:
    content_containers: ["#custom-root"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 3, cfg.Crawler.StartPage)
	require.Equal(t, 9, cfg.Crawler.EndPage)
	require.Equal(t, 2, cfg.Crawler.Concurrency)
	require.Equal(t, 30*time.Second, cfg.Timeout())
	require.Equal(t, 5, cfg.HTTP.MaxRetries)
	require.Equal(t, 100*time.Millisecond, cfg.Backoff())
	require.True(t, cfg.Headless.Enabled)
	require.Equal(t, 4, cfg.Headless.MaxParallel)
	require.Equal(t, []string{"#custom-root"}, cfg.Selectors.Post.ContentContainers)
	// Defaults still fill the untouched sections.
	require.Equal(t, "li.publish", cfg.Selectors.Listing.PublishedAt)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Crawler: CrawlerConfig{
				BaseURL: "https://example.pixnet.net/blog", StartPage: 1, EndPage: 2, Concurrency: 5,
			},
			HTTP: HTTPConfig{TimeoutSeconds: 15, MaxRetries: 2, BackoffMs: 300},
			Selectors: SelectorsConfig{
				Listing: ListingSelectorsConfig{
					PostContainer: "div.article", Title: "h2 a", PublishedAt: "li.publish", PostURL: "h2 a",
				},
				Post: PostSelectorsConfig{ContentContainers: []string{"#article-content-inner"}},
			},
			Store:  StoreConfig{MetadataPath: "posts.jsonl"},
			Export: ExportConfig{OutputDir: "posts"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.Crawler.BaseURL = "" }, "base_url"},
		{"zero start page", func(c *Config) { c.Crawler.StartPage = 0 }, "start_page"},
		{"end before start", func(c *Config) { c.Crawler.EndPage = 0 }, "end_page"},
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "concurrency"},
		{"zero timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "max_retries"},
		{"missing listing selector", func(c *Config) { c.Selectors.Listing.Title = "" }, "selectors.listing"},
		{"no content containers", func(c *Config) { c.Selectors.Post.ContentContainers = nil }, "content_containers"},
		{"headless without parallelism", func(c *Config) { c.Headless.Enabled = true; c.Headless.MaxParallel = 0 }, "max_parallel"},
		{"missing metadata path", func(c *Config) { c.Store.MetadataPath = "" }, "metadata_path"},
		{"missing output dir", func(c *Config) { c.Export.OutputDir = "" }, "output_dir"},
		{"monitor without port", func(c *Config) { c.Monitor.Enabled = true; c.Monitor.Port = 0 }, "monitor.port"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

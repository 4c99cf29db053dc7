// Package main wires together the blog crawl pipeline binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caesarw/pixnet-crawler/internal/blog"
	"github.com/caesarw/pixnet-crawler/internal/config"
	"github.com/caesarw/pixnet-crawler/internal/crawl"
	"github.com/caesarw/pixnet-crawler/internal/export"
	"github.com/caesarw/pixnet-crawler/internal/fetch"
	"github.com/caesarw/pixnet-crawler/internal/logging"
	"github.com/caesarw/pixnet-crawler/internal/metrics"
	"github.com/caesarw/pixnet-crawler/internal/monitor"
	"github.com/caesarw/pixnet-crawler/internal/render"
	"github.com/caesarw/pixnet-crawler/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cfg.Monitor.Enabled {
		mon := monitor.New(cfg.Monitor.Port, logger.Named("monitor"))
		mon.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mon.Shutdown(shutdownCtx); err != nil {
				logger.Error("monitor shutdown failed", zap.Error(err))
			}
		}()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("crawl run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	scheduler := fetch.New(fetch.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Concurrency: cfg.Crawler.Concurrency,
		Timeout:     cfg.Timeout(),
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.Backoff(),
	}, logger.Named("fetch"))
	defer scheduler.Close()

	listingSelectors := blog.ListingSelectors{
		PostContainer: cfg.Selectors.Listing.PostContainer,
		Title:         cfg.Selectors.Listing.Title,
		PublishedAt:   cfg.Selectors.Listing.PublishedAt,
		PostURL:       cfg.Selectors.Listing.PostURL,
	}
	postSelectors := blog.PostSelectors{
		ContentContainers: cfg.Selectors.Post.ContentContainers,
		AssetHost:         cfg.Selectors.Post.AssetHost,
	}

	pagination := crawl.NewPagination(scheduler, listingSelectors, logger.Named("pages"))
	metas, err := pagination.Crawl(ctx, cfg.Crawler.BaseURL, cfg.Crawler.StartPage, cfg.Crawler.EndPage)
	if err != nil {
		return fmt.Errorf("pagination crawl: %w", err)
	}
	logger.Info("metadata collected", zap.Int("posts", len(metas)))

	if err := store.WriteMetadata(cfg.Store.MetadataPath, metas); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	logger.Info("metadata written", zap.String("path", cfg.Store.MetadataPath))

	var renderer crawl.Renderer
	if cfg.Headless.Enabled {
		r, err := render.New(render.Config{
			UserAgent:        cfg.Crawler.UserAgent,
			MaxParallel:      cfg.Headless.MaxParallel,
			NavTimeout:       time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
			SelectorWait:     time.Duration(cfg.Headless.SelectorWaitSecond) * time.Second,
			SettleDelay:      time.Duration(cfg.Headless.SettleMs) * time.Millisecond,
			DomainQPS:        cfg.Headless.DomainQPS,
			ContentSelectors: cfg.Selectors.Post.ContentContainers,
		}, logger.Named("render"))
		if err != nil {
			logger.Warn("renderer init failed, crawling statically", zap.Error(err))
		} else {
			renderer = r
			defer r.Close()
		}
	}

	posts := crawl.NewPosts(scheduler, renderer, postSelectors, logger.Named("posts"))
	exporter := export.New(export.Config{
		OutputDir:      cfg.Export.OutputDir,
		DownloadImages: cfg.Export.DownloadImages,
	}, scheduler, logger.Named("export"))

	// Streaming keeps peak memory flat: each post is exported as soon
	// as it finishes, in completion order.
	exported := 0
	for post := range posts.CrawlStream(ctx, metas) {
		dir, err := exporter.Export(ctx, post)
		if err != nil {
			logger.Error("export failed",
				zap.Int("index", post.Metadata.Index),
				zap.String("url", post.Metadata.URL),
				zap.Error(err),
			)
			continue
		}
		exported++
		logger.Debug("post exported", zap.Int("index", post.Metadata.Index), zap.String("dir", dir))
	}

	logger.Info("crawl run complete",
		zap.Int("posts_listed", len(metas)),
		zap.Int("posts_exported", exported),
	)
	return nil
}

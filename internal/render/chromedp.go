// Package render obtains fully-settled DOM snapshots from pages that
// require script execution, using headless Chrome via chromedp.
package render

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config controls the renderer.
type Config struct {
	UserAgent        string
	MaxParallel      int
	NavTimeout       time.Duration
	SelectorWait     time.Duration
	SettleDelay      time.Duration
	DomainQPS        float64
	ContentSelectors []string
}

func (c *Config) applyDefaults() {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 1
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.SelectorWait <= 0 {
		c.SelectorWait = 5 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
}

// Renderer owns one headless browser process; snapshots run in
// per-call tabs under a parallelism gate and per-domain QPS budget.
type Renderer struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	domainLimiters  sync.Map
	logger          *zap.Logger
}

// New launches the browser and warms it up.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Renderer{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.MaxParallel),
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocatorCancel()
}

// Snapshot navigates to rawURL, waits for the page to settle, then for
// any configured content selector, and returns the resulting DOM. The
// readiness wait degrades gracefully: full load first, DOM-content
// level readiness when the page never goes quiet.
func (r *Renderer) Snapshot(ctx context.Context, rawURL string) (string, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return "", fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	if err := chromedp.Run(taskCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(r.cfg.UserAgent),
		chromedp.Navigate(rawURL),
		r.waitSettled(),
	); err != nil {
		return "", fmt.Errorf("chromedp navigate: %w", err)
	}

	r.waitForContent(taskCtx)

	var html string
	if err := chromedp.Run(taskCtx,
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("chromedp snapshot: %w", err)
	}
	return html, nil
}

// waitSettled waits for the body to be ready; when the page never
// settles within half the nav budget it relaxes to DOM-content-loaded
// level readiness, which is enough to capture server markup.
func (r *Renderer) waitSettled() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idleCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout/2)
		defer cancel()
		if err := chromedp.WaitReady("body", chromedp.ByQuery).Do(idleCtx); err == nil {
			return nil
		}

		var state string
		if err := chromedp.Evaluate("document.readyState", &state).Do(ctx); err != nil {
			return fmt.Errorf("read document state: %w", err)
		}
		if state == "loading" {
			return fmt.Errorf("document never reached interactive state")
		}
		return nil
	})
}

// waitForContent blocks briefly until any content selector appears.
// Absence is not an error; the snapshot proceeds with whatever the DOM
// holds.
func (r *Renderer) waitForContent(ctx context.Context) {
	for _, selector := range r.cfg.ContentSelectors {
		selCtx, cancel := context.WithTimeout(ctx, r.cfg.SelectorWait)
		err := chromedp.Run(selCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
		cancel()
		if err == nil {
			return
		}
	}
}

func (r *Renderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *Renderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Package fetch implements the bounded-concurrency HTTP scheduler used
// by both crawlers. Every call returns a typed Result; failures are
// classified, never raised past the scheduler's boundary.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/caesarw/pixnet-crawler/internal/metrics"
)

// ErrorClass buckets fetch outcomes for retry decisions and metrics.
type ErrorClass string

const (
	ClassOK              ErrorClass = "ok"
	ClassTransient       ErrorClass = "transient"
	ClassRetryableStatus ErrorClass = "retryable_status"
	ClassTerminalStatus  ErrorClass = "terminal_status"
	ClassMalformed       ErrorClass = "malformed"
	ClassUnexpected      ErrorClass = "unexpected"
)

// Server-side statuses worth another attempt. Anything else non-2xx is
// a permanent client or semantic error.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config controls scheduler behavior.
type Config struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	Concurrency    int
	Timeout        time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; CaesarBot/1.0; +https://example.invalid)"
	}
	if c.Accept == "" {
		c.Accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	}
	if c.AcceptLanguage == "" {
		c.AcceptLanguage = "zh-TW,zh;q=0.9,en;q=0.8"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 300 * time.Millisecond
	}
}

// Result is the record returned for every fetch, success or failure.
type Result struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
	Attempts   int
	Class      ErrorClass
	Err        error
}

// OK reports whether the fetch ended with a 2xx response.
func (r Result) OK() bool {
	return r.Class == ClassOK
}

// Scheduler executes GETs under a shared concurrency gate with
// per-request timeout and a bounded retry budget. It is stateless
// across calls apart from the gate and the pooled transport.
type Scheduler struct {
	cfg       Config
	sem       chan struct{}
	transport *http.Transport
	base      *colly.Collector
	logger    *zap.Logger
}

// New builds a Scheduler. The underlying collector is cloned per
// request so in-flight fetches never share callback state.
func New(cfg Config, logger *zap.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := newHTTPTransport(cfg.Concurrency)
	base := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.UserAgent(cfg.UserAgent),
	)
	base.WithTransport(transport)

	return &Scheduler{
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.Concurrency),
		transport: transport,
		base:      base,
		logger:    logger,
	}
}

// Close tears down the shared connection pool. The scheduler must not
// be used afterwards.
func (s *Scheduler) Close() {
	s.transport.CloseIdleConnections()
}

// Fetch executes a GET with retry/backoff under the concurrency gate.
// The returned Result always carries a class; callers aggregate
// failures instead of handling errors out-of-band.
func (s *Scheduler) Fetch(ctx context.Context, rawURL string) Result {
	start := time.Now()

	if err := validateURL(rawURL); err != nil {
		res := Result{URL: rawURL, Attempts: 1, Class: ClassMalformed, Err: err, Elapsed: time.Since(start)}
		s.finish(res)
		return res
	}

	if err := s.acquire(ctx); err != nil {
		res := Result{URL: rawURL, Class: ClassTransient, Err: err, Elapsed: time.Since(start)}
		s.finish(res)
		return res
	}
	defer s.release()

	var last Result
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		res := s.attempt(ctx, rawURL, attempt)
		res.Elapsed = time.Since(start)

		switch res.Class {
		case ClassOK, ClassTerminalStatus, ClassMalformed, ClassUnexpected:
			s.finish(res)
			return res
		}

		last = res
		if attempt < s.cfg.MaxRetries {
			s.logger.Warn("fetch retrying",
				zap.String("url", rawURL),
				zap.String("class", string(res.Class)),
				zap.Int("status", res.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Error(res.Err),
			)
			metrics.ObserveFetchRetry()
			if err := s.sleep(ctx, s.backoff(attempt)); err != nil {
				last.Err = err
				last.Elapsed = time.Since(start)
				s.finish(last)
				return last
			}
		}
	}

	last.Elapsed = time.Since(start)
	s.finish(last)
	return last
}

// attempt runs one GET via a cloned collector and classifies the outcome.
func (s *Scheduler) attempt(ctx context.Context, rawURL string, attempt int) (res Result) {
	res = Result{URL: rawURL, Attempts: attempt + 1}

	defer func() {
		if r := recover(); r != nil {
			res.Class = ClassUnexpected
			res.Err = fmt.Errorf("fetch panic: %v", r)
		}
	}()

	collector := s.base.Clone()
	collector.SetRequestTimeout(s.cfg.Timeout)
	collector.WithTransport(s.transport)

	var (
		responded bool
		fetchErr  error
	)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", s.cfg.Accept)
		r.Headers.Set("Accept-Language", s.cfg.AcceptLanguage)
	})
	collector.OnResponse(func(r *colly.Response) {
		responded = true
		res.FinalURL = r.Request.URL.String()
		res.StatusCode = r.StatusCode
		res.Body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			res.StatusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				res.FinalURL = r.Request.URL.String()
			}
		}
	})

	if err := s.run(ctx, collector, rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}

	switch {
	case responded && res.StatusCode >= 200 && res.StatusCode < 300:
		res.Class = ClassOK
	case res.StatusCode != 0 && retryableStatus[res.StatusCode]:
		res.Class = ClassRetryableStatus
		res.Err = fmt.Errorf("retryable status %d: %w", res.StatusCode, errOrStatus(fetchErr, res.StatusCode))
	case res.StatusCode != 0:
		res.Class = ClassTerminalStatus
		res.Err = fmt.Errorf("terminal status %d: %w", res.StatusCode, errOrStatus(fetchErr, res.StatusCode))
	default:
		res.Class = ClassTransient
		res.Err = errOrStatus(fetchErr, 0)
	}
	return res
}

// run drives the collector visit in a goroutine so a canceled context
// does not leave the caller blocked on a slow request.
func (s *Scheduler) run(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

func (s *Scheduler) finish(res Result) {
	metrics.ObserveFetch(string(res.Class))
	if !res.OK() {
		s.logger.Warn("fetch failed",
			zap.String("url", res.URL),
			zap.String("class", string(res.Class)),
			zap.Int("status", res.StatusCode),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err),
		)
	}
}

func (s *Scheduler) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire fetch slot: %w", ctx.Err())
	}
}

func (s *Scheduler) release() {
	<-s.sem
}

// backoff is linear: base × (attempt+1).
func (s *Scheduler) backoff(attempt int) time.Duration {
	return s.cfg.BackoffBase * time.Duration(attempt+1)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	}
}

func validateURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("unsupported url %q", rawURL)
	}
	return nil
}

func errOrStatus(err error, status int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("http status %d", status)
}

func newHTTPTransport(concurrency int) *http.Transport {
	maxIdle := concurrency * 2
	if maxIdle < 20 {
		maxIdle = 20
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          maxIdle,
		IdleConnTimeout:       90 * time.Second,
	}
}

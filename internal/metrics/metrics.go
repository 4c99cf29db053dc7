// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal   *prometheus.CounterVec
	fetchRetriesTotal    prometheus.Counter
	listingPagesTotal    *prometheus.CounterVec
	postsTotal           *prometheus.CounterVec
	imagesRecoveredTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_requests_total",
				Help: "Total fetches completed, labeled by result class.",
			},
			[]string{"class"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total retry attempts across all fetches.",
			},
		)

		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listing_pages_total",
				Help: "Total listing pages processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		postsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_posts_total",
				Help: "Total posts processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		imagesRecoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_images_recovered_total",
				Help: "Images recovered by the fallback chain, labeled by stage.",
			},
			[]string{"stage"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records a completed fetch by result class.
func ObserveFetch(class string) {
	if fetchRequestsTotal != nil {
		fetchRequestsTotal.WithLabelValues(class).Inc()
	}
}

// ObserveFetchRetry records one retry attempt.
func ObserveFetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// ObserveListingPage records a listing page outcome ("ok" or "failed").
func ObserveListingPage(outcome string) {
	if listingPagesTotal != nil {
		listingPagesTotal.WithLabelValues(outcome).Inc()
	}
}

// ObservePost records a post crawl outcome ("ok" or "failed").
func ObservePost(outcome string) {
	if postsTotal != nil {
		postsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveImagesRecovered records images recovered by a fallback stage.
func ObserveImagesRecovered(stage string, count int) {
	if imagesRecoveredTotal != nil && count > 0 {
		imagesRecoveredTotal.WithLabelValues(stage).Add(float64(count))
	}
}

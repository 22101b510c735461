// Package metrics exposes Prometheus counters for the crawl pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesFetched counts fetches by outcome: ok, not_found, gone or error.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "HTTP fetches by outcome",
		},
		[]string{"outcome"},
	)

	// CandidatesDiscovered counts fresh listing URLs per city.
	CandidatesDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_candidates_discovered_total",
			Help: "Listing URLs discovered by the frontier walker",
		},
		[]string{"city"},
	)

	// RowsWritten counts rows a stage inserted or upserted.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_rows_written_total",
			Help: "Rows inserted or upserted by stage",
		},
		[]string{"stage"},
	)

	// ItemFailures counts items dropped from a batch.
	ItemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_item_failures_total",
			Help: "Items dropped from a batch by stage",
		},
		[]string{"stage"},
	)

	// BatchDuration observes committed batch wall time.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_batch_duration_seconds",
			Help:    "Wall time of one claim-process-commit batch",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"stage"},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

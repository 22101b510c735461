package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"property-scraper/metrics"
	"property-scraper/utils"
)

var (
	// ErrNotFound is returned for HTTP 404.
	ErrNotFound = errors.New("page not found")
	// ErrGone is returned for HTTP 410; the site uses it for removed listings.
	ErrGone = errors.New("page gone")
)

// StatusError is a non-2xx response that is neither retried nor a sentinel.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// maxBodyBytes caps a single page read.
const maxBodyBytes = 8 << 20

// Fetcher performs rate-limited GET requests with retries on transient failures.
type Fetcher struct {
	hc        *http.Client
	limiter   *utils.Limiter
	retry     *utils.RetryConfig
	userAgent string
	logger    *utils.Logger
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	Timeout     time.Duration
	UserAgent   string
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewFetcher builds a Fetcher sharing the given limiter.
func NewFetcher(limiter *utils.Limiter, opts FetcherOptions, logger *utils.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Fetcher{
		hc:        &http.Client{Timeout: opts.Timeout},
		limiter:   limiter,
		retry:     &utils.RetryConfig{MaxAttempts: opts.MaxAttempts, BaseDelay: opts.BaseDelay, Logger: logger},
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

// Fetch returns the body of url. 404 and 410 map to ErrNotFound and ErrGone
// without retrying; network errors, 429 and 5xx are retried with backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, "GET "+url, func() error {
		b, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		metrics.PagesFetched.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	metrics.PagesFetched.WithLabelValues("ok").Inc()
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil, utils.Permanent(err)
	}
	defer f.limiter.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, utils.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	f.logger.Debug("[fetcher] GET %s", url)
	resp, err := f.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, utils.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusGone:
		return nil, utils.Permanent(ErrGone)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, utils.Permanent(&StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return b, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGone):
		return "gone"
	default:
		return "error"
	}
}

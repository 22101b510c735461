package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds outbound requests with a concurrency ceiling and a minimum
// spacing between request starts. One Limiter is shared by every fetch call site.
type Limiter struct {
	sem  *semaphore.Weighted
	rate *rate.Limiter
}

// NewLimiter creates a Limiter allowing maxInFlight concurrent holders and at
// most one acquisition per minInterval. A zero interval disables spacing.
func NewLimiter(maxInFlight int, minInterval time.Duration) *Limiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	r := rate.NewLimiter(rate.Inf, 1)
	if minInterval > 0 {
		r = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(maxInFlight)),
		rate: r,
	}
}

// Acquire blocks until a slot is free and the spacing interval has elapsed.
// Callers must Release after a nil return.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.rate.Wait(ctx); err != nil {
		l.sem.Release(1)
		return err
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Do runs fn while holding a slot.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

// URLSet is a thread-safe set for tracking visited URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"property-scraper/models"
	"property-scraper/scraper"
	"property-scraper/utils"
)

// AvailabilityStore lists live properties and flags removed ones.
type AvailabilityStore interface {
	AvailableAfter(ctx context.Context, afterID int64, limit int) ([]models.Property, error)
	MarkUnavailable(ctx context.Context, ids []int64) error
}

// AvailabilityService re-checks stored listings and marks the ones the site
// reports as gone.
type AvailabilityService struct {
	store   AvailabilityStore
	fetcher PageFetcher
	opts    StageOptions
	logger  *utils.Logger
}

// NewAvailabilityService creates an AvailabilityService sharing fetcher with the other stages.
func NewAvailabilityService(store AvailabilityStore, fetcher PageFetcher, opts StageOptions, logger *utils.Logger) *AvailabilityService {
	return &AvailabilityService{store: store, fetcher: fetcher, opts: opts, logger: logger}
}

// Run checks every available property once and returns how many were marked
// unavailable. Only 410 responses count as removed.
func (s *AvailabilityService) Run(ctx context.Context) (int, error) {
	var cursor int64
	total, checked := 0, 0

	for {
		batch, err := s.store.AvailableAfter(ctx, cursor, s.opts.BatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}
		cursor = batch[len(batch)-1].ID
		checked += len(batch)

		gone := s.checkBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if len(gone) > 0 {
			if err := s.store.MarkUnavailable(ctx, gone); err != nil {
				return total, fmt.Errorf("availability: %w", err)
			}
			total += len(gone)
		}
		s.logger.Info("[availability] checked %d, %d removed so far", checked, total)
	}

	s.logger.Info("[availability] done: %d checked, %d marked unavailable", checked, total)
	return total, nil
}

func (s *AvailabilityService) checkBatch(ctx context.Context, batch []models.Property) []int64 {
	var mu sync.Mutex
	var gone []int64

	var g errgroup.Group
	g.SetLimit(max(1, s.opts.Parallelism))
	for _, p := range batch {
		g.Go(func() error {
			_, err := s.fetcher.Fetch(ctx, p.URL)
			switch {
			case errors.Is(err, scraper.ErrGone):
				mu.Lock()
				gone = append(gone, p.ID)
				mu.Unlock()
			case err != nil:
				s.logger.Debug("[availability] %s: %v", p.URL, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return gone
}

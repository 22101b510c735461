package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"property-scraper/config"
	"property-scraper/models"
	"property-scraper/scraper/frontier"
	"property-scraper/utils"
)

// PartitionWalker walks one partition's index.
type PartitionWalker interface {
	Walk(ctx context.Context, p frontier.Partition, cutoff *time.Time) ([]models.CandidateURL, error)
}

// DiscoveryStore resolves cities and their freshness cutoffs.
type DiscoveryStore interface {
	FindOrCreateCity(ctx context.Context, name string) (int64, error)
	FreshnessCutoff(ctx context.Context, cityID int64) (*time.Time, error)
}

// DiscoveryStats summarises one discovery run.
type DiscoveryStats struct {
	Partitions int
	Failed     int
	Discovered int
}

// DiscoveryService fills the frontier by walking every configured partition.
type DiscoveryService struct {
	store   DiscoveryStore
	walker  PartitionWalker
	targets *config.Targets
	logger  *utils.Logger
}

// NewDiscoveryService creates a DiscoveryService over the given targets.
func NewDiscoveryService(store DiscoveryStore, walker PartitionWalker, targets *config.Targets, logger *utils.Logger) *DiscoveryService {
	return &DiscoveryService{store: store, walker: walker, targets: targets, logger: logger}
}

// Run walks each city × type × purpose partition concurrently. Each city's
// cutoff is read once before its walks start. A failing walk is logged and
// does not affect the others; Run fails only if every walk failed or a city
// could not be resolved.
func (s *DiscoveryService) Run(ctx context.Context) (DiscoveryStats, error) {
	var stats DiscoveryStats
	var failed, discovered int64
	var g errgroup.Group

	for _, city := range s.targets.Cities {
		cityID, err := s.store.FindOrCreateCity(ctx, city.Name)
		if err != nil {
			return stats, fmt.Errorf("discover: city %s: %w", city.Name, err)
		}
		cutoff, err := s.store.FreshnessCutoff(ctx, cityID)
		if err != nil {
			return stats, fmt.Errorf("discover: city %s: %w", city.Name, err)
		}
		if cutoff != nil {
			s.logger.Info("[discover] %s: cutoff %s", city.Name, cutoff.Format(time.RFC3339))
		} else {
			s.logger.Info("[discover] %s: no stored properties, walking full index", city.Name)
		}

		for _, typ := range s.targets.PropertyTypes {
			for _, purpose := range s.targets.Purposes {
				p := frontier.Partition{
					CityID:       cityID,
					CityName:     city.Name,
					CitySlug:     city.Slug,
					PropertyType: typ,
					Purpose:      purpose,
				}
				stats.Partitions++
				g.Go(func() error {
					found, err := s.walker.Walk(ctx, p, cutoff)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						s.logger.Error("[discover] %s: %v", p, err)
						return nil
					}
					atomic.AddInt64(&discovered, int64(len(found)))
					return nil
				})
			}
		}
	}
	_ = g.Wait()

	stats.Failed = int(failed)
	stats.Discovered = int(discovered)
	s.logger.Info("[discover] %d partitions walked, %d failed, %d fresh listings",
		stats.Partitions, stats.Failed, stats.Discovered)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Partitions > 0 && stats.Failed == stats.Partitions {
		return stats, fmt.Errorf("discover: all %d partition walks failed", stats.Partitions)
	}
	return stats, nil
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-scraper/config"
	"property-scraper/models"
	"property-scraper/scraper/frontier"
	"property-scraper/utils"
)

type fakeWalker struct {
	mu      sync.Mutex
	walked  []frontier.Partition
	cutoffs map[string]*time.Time
	fail    func(p frontier.Partition) bool
}

func (w *fakeWalker) Walk(_ context.Context, p frontier.Partition, cutoff *time.Time) ([]models.CandidateURL, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.walked = append(w.walked, p)
	if w.cutoffs == nil {
		w.cutoffs = map[string]*time.Time{}
	}
	w.cutoffs[p.CityName] = cutoff
	if w.fail != nil && w.fail(p) {
		return nil, errors.New("listing index returned 503")
	}
	return []models.CandidateURL{{URL: p.String() + "/1", CityID: p.CityID}}, nil
}

func twoCityTargets() *config.Targets {
	return &config.Targets{
		Cities:        []config.City{{Name: "Lahore", Slug: "Lahore-1"}, {Name: "Karachi", Slug: "Karachi-2"}},
		PropertyTypes: []string{"Homes", "Plots"},
		Purposes:      []string{"Buy", "Rent"},
	}
}

func TestDiscoverWalksEveryPartition(t *testing.T) {
	store := newMemStore()
	walker := &fakeWalker{}

	stats, err := NewDiscoveryService(store, walker, twoCityTargets(), utils.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DiscoveryStats{Partitions: 8, Discovered: 8}, stats)
	require.Len(t, walker.walked, 8)
	assert.Len(t, store.cities, 2)

	seen := map[string]bool{}
	for _, p := range walker.walked {
		seen[p.String()] = true
		assert.Equal(t, store.cities[p.CityName], p.CityID)
	}
	assert.Len(t, seen, 8)
}

func TestDiscoverPassesCityCutoff(t *testing.T) {
	store := newMemStore()
	lahore, _ := store.FindOrCreateCity(context.Background(), "Lahore")
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.cutoffs[lahore] = &cutoff
	walker := &fakeWalker{}

	_, err := NewDiscoveryService(store, walker, twoCityTargets(), utils.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, walker.cutoffs["Lahore"])
	assert.Equal(t, cutoff, *walker.cutoffs["Lahore"])
	assert.Nil(t, walker.cutoffs["Karachi"], "a city with no properties is walked in full")
}

func TestDiscoverToleratesPartialFailure(t *testing.T) {
	walker := &fakeWalker{fail: func(p frontier.Partition) bool { return p.CityName == "Karachi" }}

	stats, err := NewDiscoveryService(newMemStore(), walker, twoCityTargets(), utils.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Failed)
	assert.Equal(t, 4, stats.Discovered)
}

func TestDiscoverFailsWhenEveryWalkFails(t *testing.T) {
	walker := &fakeWalker{fail: func(frontier.Partition) bool { return true }}

	_, err := NewDiscoveryService(newMemStore(), walker, twoCityTargets(), utils.NewNopLogger()).Run(context.Background())
	assert.ErrorContains(t, err, "all 8 partition walks failed")
}

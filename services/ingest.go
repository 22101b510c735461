package services

import (
	"context"
	"fmt"
	"time"

	"property-scraper/models"
	"property-scraper/storage"
	"property-scraper/utils"
)

// PageFetcher fetches one page body.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// IngestStore is the storage the raw ingestion stage needs.
type IngestStore interface {
	storage.FrontierStore
	storage.RawStore
}

// StageOptions tunes a claim-process-commit stage.
type StageOptions struct {
	BatchSize   int
	Parallelism int
	MaxFailures int
	// BatchTimeout caps how long one batch's transaction stays open while
	// its items are fetched or parsed.
	BatchTimeout time.Duration
	TxRetry      *utils.RetryConfig
}

// IngestService moves frontier URLs into raw_properties.
type IngestService struct {
	store   IngestStore
	fetcher PageFetcher
	cleaner *Cleaner
	opts    StageOptions
	logger  *utils.Logger
}

// NewIngestService creates an IngestService with its own Cleaner.
func NewIngestService(store IngestStore, fetcher PageFetcher, opts StageOptions, logger *utils.Logger) *IngestService {
	return &IngestService{
		store:   store,
		fetcher: fetcher,
		cleaner: NewCleaner(logger),
		opts:    opts,
		logger:  logger,
	}
}

// Run ingests frontier URLs until none are left unprocessed. URLs that fail
// to fetch are left for a later run.
func (s *IngestService) Run(ctx context.Context) (Stats, error) {
	loop := &WorkLoop[models.CandidateURL, models.RawRecord]{
		Name:         "ingest",
		Begin:        s.store.BeginTx,
		Claim:        s.store.ClaimCandidates,
		Key:          func(c models.CandidateURL) int64 { return c.ID },
		Transform:    s.fetchOne,
		Commit:       s.commit,
		BatchSize:    s.opts.BatchSize,
		Parallelism:  s.opts.Parallelism,
		MaxFailures:  s.opts.MaxFailures,
		BatchTimeout: s.opts.BatchTimeout,
		TxRetry:      s.opts.TxRetry,
		Logger:       s.logger,
	}
	return loop.Run(ctx)
}

func (s *IngestService) fetchOne(ctx context.Context, c models.CandidateURL) (models.RawRecord, error) {
	body, err := s.fetcher.Fetch(ctx, c.URL)
	if err != nil {
		return models.RawRecord{}, fmt.Errorf("fetch %s: %w", c.URL, err)
	}
	html, err := s.cleaner.CleanHTML(body)
	if err != nil {
		return models.RawRecord{}, fmt.Errorf("%s: %w", c.URL, err)
	}
	return models.RawRecord{
		URL:        c.URL,
		CityID:     c.CityID,
		ExternalID: ExternalID(c.URL),
		HTML:       html,
	}, nil
}

func (s *IngestService) commit(ctx context.Context, q storage.Querier, done []models.CandidateURL, records []models.RawRecord) (int64, error) {
	inserted, err := s.store.InsertRaw(ctx, q, records)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, len(done))
	for i, c := range done {
		ids[i] = c.ID
	}
	if err := s.store.MarkCandidatesProcessed(ctx, q, ids); err != nil {
		return 0, err
	}
	return inserted, nil
}

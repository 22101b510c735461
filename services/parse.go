package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"property-scraper/models"
	"property-scraper/scraper/extract"
	"property-scraper/storage"
	"property-scraper/utils"
)

// ParseStore is the storage the parse and upsert stage needs.
type ParseStore interface {
	storage.RawStore
	storage.DedupStore
	UpsertProperties(ctx context.Context, q storage.Querier, props []models.Property) (int64, error)
}

// ParseService turns raw listing pages into upserted properties.
type ParseService struct {
	store  ParseStore
	base   *url.URL
	opts   StageOptions
	logger *utils.Logger
}

// NewParseService creates a ParseService. baseURL resolves relative agency links.
func NewParseService(store ParseStore, baseURL string, opts StageOptions, logger *utils.Logger) (*ParseService, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &ParseService{store: store, base: base, opts: opts, logger: logger}, nil
}

// Run parses raw pages until none are left unprocessed. Pages that fail to
// extract stay unprocessed.
func (s *ParseService) Run(ctx context.Context) (Stats, error) {
	loop := &WorkLoop[models.RawRecord, models.Property]{
		Name:         "parse",
		Begin:        s.store.BeginTx,
		Claim:        s.store.ClaimRaw,
		Key:          func(r models.RawRecord) int64 { return r.ID },
		Transform:    s.parseOne,
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

func (s *ParseService) parseOne(ctx context.Context, r models.RawRecord) (models.Property, error) {
	l, err := extract.ExtractAt(r.HTML, fetchedAt(r))
	if err != nil {
		return models.Property{}, fmt.Errorf("extract %s: %w", r.URL, err)
	}

	p := models.Property{
		ExternalID:            r.ExternalID,
		URL:                   r.URL,
		CityID:                r.CityID,
		Description:           l.Description,
		Header:                normaliseText(l.Header),
		Type:                  l.Type,
		Purpose:               l.Purpose,
		Price:                 l.Price,
		Bath:                  l.Bath,
		Bedroom:               l.Bedroom,
		Area:                  l.Area,
		Added:                 l.Added,
		InitialAmount:         l.InitialAmount,
		MonthlyInstallment:    l.MonthlyInstallment,
		RemainingInstallments: l.RemainingInstallments,
		CoverPhotoURL:         l.CoverPhotoURL,
		Features:              l.Features,
		IsPostedByAgency:      l.IsPostedByAgency,
		Available:             true,
	}

	if loc := normaliseText(l.Location); loc != "" {
		id, err := s.store.FindOrCreateLocation(ctx, loc)
		if err != nil {
			return models.Property{}, fmt.Errorf("resolve location for %s: %w", r.URL, err)
		}
		p.LocationID = &id
	}

	if l.Agency != nil {
		id, err := s.store.FindOrCreateAgency(ctx, l.Agency.Title, s.absolute(l.Agency.ProfileURL))
		if err != nil {
			return models.Property{}, fmt.Errorf("resolve agency for %s: %w", r.URL, err)
		}
		p.AgencyID = &id
	}

	return p, nil
}

// fetchedAt is the clock relative "added" texts were written against: the
// time the raw page was stored, or now when that is unknown.
func fetchedAt(r models.RawRecord) time.Time {
	if r.CreatedAt.IsZero() {
		return time.Now()
	}
	return r.CreatedAt
}

func (s *ParseService) commit(ctx context.Context, q storage.Querier, done []models.RawRecord, props []models.Property) (int64, error) {
	n, err := s.store.UpsertProperties(ctx, q, dedupeByExternalID(props))
	if err != nil {
		return 0, err
	}
	ids := make([]int64, len(done))
	for i, r := range done {
		ids[i] = r.ID
	}
	if err := s.store.MarkRawProcessed(ctx, q, ids); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *ParseService) absolute(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

// dedupeByExternalID keeps the last property for each external id so one
// upsert statement never touches the same row twice.
func dedupeByExternalID(props []models.Property) []models.Property {
	last := make(map[int64]int, len(props))
	for i, p := range props {
		if p.ExternalID != nil {
			last[*p.ExternalID] = i
		}
	}
	out := make([]models.Property, 0, len(props))
	for i, p := range props {
		if p.ExternalID != nil && last[*p.ExternalID] != i {
			continue
		}
		out = append(out, p)
	}
	return out
}

package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"property-scraper/models"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Tx is a batch transaction.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// TxBeginner opens batch transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// FrontierStore holds discovered listing URLs awaiting raw ingestion.
type FrontierStore interface {
	TxBeginner
	InsertCandidates(ctx context.Context, candidates []models.CandidateURL) (int64, error)
	ClaimCandidates(ctx context.Context, q Querier, afterID int64, limit int) ([]models.CandidateURL, error)
	MarkCandidatesProcessed(ctx context.Context, q Querier, ids []int64) error
}

// RawStore holds cleaned listing HTML awaiting parsing.
type RawStore interface {
	TxBeginner
	InsertRaw(ctx context.Context, q Querier, records []models.RawRecord) (int64, error)
	ClaimRaw(ctx context.Context, q Querier, afterID int64, limit int) ([]models.RawRecord, error)
	MarkRawProcessed(ctx context.Context, q Querier, ids []int64) error
}

// PropertyStore upserts structured listings and tracks their availability.
type PropertyStore interface {
	UpsertProperties(ctx context.Context, q Querier, props []models.Property) (int64, error)
	AvailableAfter(ctx context.Context, afterID int64, limit int) ([]models.Property, error)
	MarkUnavailable(ctx context.Context, ids []int64) error
}

// DedupStore resolves natural keys to row ids, creating rows on first sight.
type DedupStore interface {
	FindOrCreateCity(ctx context.Context, name string) (int64, error)
	FindOrCreateLocation(ctx context.Context, name string) (int64, error)
	FindOrCreateAgency(ctx context.Context, title, profileURL string) (int64, error)
}

// StateStore reports crawl progress.
type StateStore interface {
	FreshnessCutoff(ctx context.Context, cityID int64) (*time.Time, error)
	CountCreatedSince(ctx context.Context, since time.Time) (models.DailyCounts, error)
	CountPropertiesByCity(ctx context.Context, since time.Time) ([]models.CityCount, error)
}

package storage

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"property-scraper/models"
)

const rawInsertBatch = 100

// InsertRaw stores cleaned listing pages. Pages whose URL is already stored are skipped.
func (p *Postgres) InsertRaw(ctx context.Context, q Querier, records []models.RawRecord) (int64, error) {
	var inserted int64
	for _, c := range chunks(len(records), rawInsertBatch) {
		batch := records[c[0]:c[1]]
		args := make([]any, 0, len(batch)*4)
		for _, r := range batch {
			args = append(args, r.URL, r.CityID, r.ExternalID, r.HTML)
		}

		query := `INSERT INTO raw_properties (url, city_id, external_id, html) VALUES ` +
			valuesClause(len(batch), 4) +
			` ON CONFLICT (url) DO NOTHING`

		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert raw: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}

// ClaimRaw locks up to limit unprocessed, non-deleted raw rows with id > afterID.
func (p *Postgres) ClaimRaw(ctx context.Context, q Querier, afterID int64, limit int) ([]models.RawRecord, error) {
	var out []models.RawRecord
	err := q.SelectContext(ctx, &out, `
		SELECT id, url, city_id, external_id, html, is_processed, created_at
		FROM raw_properties
		WHERE is_processed = FALSE AND deleted_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim raw: %w", err)
	}
	return out, nil
}

// MarkRawProcessed flags raw rows as parsed.
func (p *Postgres) MarkRawProcessed(ctx context.Context, q Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `UPDATE raw_properties SET is_processed = TRUE WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("postgres: mark raw processed: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"property-scraper/models"
)

const candidateInsertBatch = 500

// InsertCandidates adds discovered URLs to the frontier, skipping URLs already present.
func (p *Postgres) InsertCandidates(ctx context.Context, candidates []models.CandidateURL) (int64, error) {
	var inserted int64
	for _, c := range chunks(len(candidates), candidateInsertBatch) {
		batch := candidates[c[0]:c[1]]
		args := make([]any, 0, len(batch)*3)
		for _, cand := range batch {
			args = append(args, cand.URL, cand.CityID, cand.Added)
		}

		query := `INSERT INTO urls (url, city_id, added) VALUES ` +
			valuesClause(len(batch), 3) +
			` ON CONFLICT (url) DO NOTHING`

		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert candidates: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}

// ClaimCandidates locks up to limit unprocessed frontier rows with id > afterID.
// Rows locked by another transaction are skipped.
func (p *Postgres) ClaimCandidates(ctx context.Context, q Querier, afterID int64, limit int) ([]models.CandidateURL, error) {
	var out []models.CandidateURL
	err := q.SelectContext(ctx, &out, `
		SELECT id, url, city_id, added, is_processed
		FROM urls
		WHERE is_processed = FALSE AND id > $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: claim candidates: %w", err)
	}
	return out, nil
}

// MarkCandidatesProcessed flags frontier rows as ingested.
func (p *Postgres) MarkCandidatesProcessed(ctx context.Context, q Querier, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `UPDATE urls SET is_processed = TRUE WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("postgres: mark candidates processed: %w", err)
	}
	return nil
}

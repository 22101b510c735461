package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"property-scraper/models"
)

const propertyUpsertBatch = 200

var propertyColumns = []string{
	"external_id", "url", "city_id", "location_id", "agency_id",
	"description", "header", "type", "purpose", "price",
	"bath", "bedroom", "area", "added", "initial_amount",
	"monthly_installment", "remaining_installments", "cover_photo_url", "features", "is_posted_by_agency",
}

var propertyUpsertTail = func() string {
	sets := make([]string, 0, len(propertyColumns)+2)
	for _, c := range propertyColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "available = TRUE", "deleted_at = NULL")
	return " ON CONFLICT (external_id) DO UPDATE SET " + strings.Join(sets, ", ")
}()

// UpsertProperties inserts properties, updating the existing row when the
// external id is already stored. The batch must not repeat an external id.
func (p *Postgres) UpsertProperties(ctx context.Context, q Querier, props []models.Property) (int64, error) {
	var affected int64
	for _, c := range chunks(len(props), propertyUpsertBatch) {
		batch := props[c[0]:c[1]]
		args := make([]any, 0, len(batch)*len(propertyColumns))
		for _, pr := range batch {
			args = append(args,
				pr.ExternalID, pr.URL, pr.CityID, pr.LocationID, pr.AgencyID,
				pr.Description, pr.Header, pr.Type, pr.Purpose, pr.Price,
				pr.Bath, pr.Bedroom, pr.Area, pr.Added, pr.InitialAmount,
				pr.MonthlyInstallment, pr.RemainingInstallments, pr.CoverPhotoURL, pr.Features, pr.IsPostedByAgency,
			)
		}

		query := `INSERT INTO properties (` + strings.Join(propertyColumns, ", ") + `) VALUES ` +
			valuesClause(len(batch), len(propertyColumns)) +
			propertyUpsertTail

		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return affected, fmt.Errorf("postgres: upsert properties: %w", err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}
	return affected, nil
}

// AvailableAfter lists up to limit available properties with id > afterID.
func (p *Postgres) AvailableAfter(ctx context.Context, afterID int64, limit int) ([]models.Property, error) {
	var out []models.Property
	err := p.db.SelectContext(ctx, &out, `
		SELECT id, url, city_id
		FROM properties
		WHERE available = TRUE AND deleted_at IS NULL AND id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list available: %w", err)
	}
	return out, nil
}

// MarkUnavailable flags properties whose listing was taken down.
func (p *Postgres) MarkUnavailable(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.db.ExecContext(ctx, `UPDATE properties SET available = FALSE WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("postgres: mark unavailable: %w", err)
	}
	return nil
}

// PropertiesCreatedAfter pages through properties created at or after since,
// ordered by id.
func (p *Postgres) PropertiesCreatedAfter(ctx context.Context, since time.Time, afterID int64, limit int) ([]models.Property, error) {
	var out []models.Property
	err := p.db.SelectContext(ctx, &out, `
		SELECT id, external_id, url, city_id, location_id, agency_id, description, header, type, purpose,
		       price, bath, bedroom, area, added, initial_amount, monthly_installment, remaining_installments,
		       cover_photo_url, features, is_posted_by_agency, available, created_at, updated_at
		FROM properties
		WHERE created_at >= $1 AND deleted_at IS NULL AND id > $2
		ORDER BY id
		LIMIT $3
	`, since, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list properties: %w", err)
	}
	return out, nil
}

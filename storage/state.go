package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"property-scraper/models"
)

// FreshnessCutoff returns the newest added time stored for the city, or nil
// when the city has no properties yet.
func (p *Postgres) FreshnessCutoff(ctx context.Context, cityID int64) (*time.Time, error) {
	var latest sql.NullTime
	err := p.db.GetContext(ctx, &latest,
		`SELECT MAX(added) FROM properties WHERE city_id = $1 AND deleted_at IS NULL`, cityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: freshness cutoff for city %d: %w", cityID, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// CountCreatedSince counts rows created at or after since in each pipeline table.
func (p *Postgres) CountCreatedSince(ctx context.Context, since time.Time) (models.DailyCounts, error) {
	var c models.DailyCounts
	err := p.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM urls WHERE created_at >= $1)           AS urls,
			(SELECT COUNT(*) FROM raw_properties WHERE created_at >= $1) AS raw_properties,
			(SELECT COUNT(*) FROM properties WHERE created_at >= $1)     AS properties
	`, since)
	if err != nil {
		return c, fmt.Errorf("postgres: count created since %s: %w", since.Format(time.RFC3339), err)
	}
	return c, nil
}

// CountPropertiesByCity counts properties created at or after since, per city.
func (p *Postgres) CountPropertiesByCity(ctx context.Context, since time.Time) ([]models.CityCount, error) {
	var out []models.CityCount
	err := p.db.SelectContext(ctx, &out, `
		SELECT c.name AS city, COUNT(*) AS count
		FROM properties p
		JOIN cities c ON c.id = p.city_id
		WHERE p.created_at >= $1
		GROUP BY c.name
		ORDER BY count DESC, c.name
	`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: count by city: %w", err)
	}
	return out, nil
}

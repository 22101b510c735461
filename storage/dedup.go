package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// DedupTable is a lookup table keyed by a unique natural key.
type DedupTable struct {
	Name      string
	KeyColumn string
}

// Lookup tables resolved by FindOrCreate.
var (
	Cities    = DedupTable{Name: "cities", KeyColumn: "name"}
	Locations = DedupTable{Name: "locations", KeyColumn: "name"}
	Agencies  = DedupTable{Name: "agencies", KeyColumn: "profile_url"}
)

// Attr is an extra column written when a dedup row is first created.
type Attr struct {
	Column string
	Value  any
}

// FindOrCreate returns the id of the row whose key column equals key,
// inserting it first if needed. Concurrent callers racing on the same key
// all get the same id.
func (p *Postgres) FindOrCreate(ctx context.Context, t DedupTable, key string, attrs ...Attr) (int64, error) {
	cols := []string{t.KeyColumn}
	args := []any{key}
	for _, a := range attrs {
		cols = append(cols, a.Column)
		args = append(args, a.Value)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING RETURNING id`,
		t.Name, strings.Join(cols, ", "), valuesClause(1, len(cols)), t.KeyColumn)

	var id int64
	err := p.db.GetContext(ctx, &id, insert, args...)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("postgres: insert %s %q: %w", t.Name, key, err)
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1`, t.Name, t.KeyColumn)
	if err := p.db.GetContext(ctx, &id, query, key); err != nil {
		return 0, fmt.Errorf("postgres: select %s %q: %w", t.Name, key, err)
	}
	return id, nil
}

// FindOrCreateCity resolves a city by name.
func (p *Postgres) FindOrCreateCity(ctx context.Context, name string) (int64, error) {
	return p.FindOrCreate(ctx, Cities, name)
}

// FindOrCreateLocation resolves a location by its display name.
func (p *Postgres) FindOrCreateLocation(ctx context.Context, name string) (int64, error) {
	return p.FindOrCreate(ctx, Locations, name)
}

// FindOrCreateAgency resolves an agency by profile URL. title is only
// written when the agency is first seen.
func (p *Postgres) FindOrCreateAgency(ctx context.Context, title, profileURL string) (int64, error) {
	return p.FindOrCreate(ctx, Agencies, profileURL, Attr{Column: "title", Value: title})
}

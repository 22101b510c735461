package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CandidateURL is a listing URL discovered on an index page, pending raw ingestion.
type CandidateURL struct {
	ID          int64      `db:"id"`
	URL         string     `db:"url"`
	CityID      int64      `db:"city_id"`
	Added       *time.Time `db:"added"`
	IsProcessed bool       `db:"is_processed"`
}

// RawRecord is the cleaned HTML of one listing page, waiting to be parsed.
type RawRecord struct {
	ID          int64     `db:"id"`
	URL         string    `db:"url"`
	CityID      int64     `db:"city_id"`
	ExternalID  *int64    `db:"external_id"`
	HTML        string    `db:"html"`
	IsProcessed bool      `db:"is_processed"`
	CreatedAt   time.Time `db:"created_at"`
}

// Feature is one amenity category and the labels listed under it.
type Feature struct {
	Category string   `json:"category"`
	Features []string `json:"features"`
}

// FeatureList is stored as a jsonb array.
type FeatureList []Feature

// Value implements driver.Valuer. The JSON is returned as a string so the
// driver sends it as text rather than bytea.
func (f FeatureList) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *FeatureList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return errors.New("features: unsupported scan type")
	}
}

// Property is the structured, upsertable record built from a raw listing page.
type Property struct {
	ID                    int64       `db:"id"`
	ExternalID            *int64      `db:"external_id"`
	URL                   string      `db:"url"`
	CityID                int64       `db:"city_id"`
	LocationID            *int64      `db:"location_id"`
	AgencyID              *int64      `db:"agency_id"`
	Description           string      `db:"description"`
	Header                string      `db:"header"`
	Type                  string      `db:"type"`
	Purpose               string      `db:"purpose"`
	Price                 float64     `db:"price"`
	Bath                  int         `db:"bath"`
	Bedroom               int         `db:"bedroom"`
	Area                  float64     `db:"area"`
	Added                 *time.Time  `db:"added"`
	InitialAmount         string      `db:"initial_amount"`
	MonthlyInstallment    string      `db:"monthly_installment"`
	RemainingInstallments string      `db:"remaining_installments"`
	CoverPhotoURL         string      `db:"cover_photo_url"`
	Features              FeatureList `db:"features"`
	IsPostedByAgency      bool        `db:"is_posted_by_agency"`
	Available             bool        `db:"available"`
	CreatedAt             time.Time   `db:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at"`
}

// DailyCounts holds rows created since a point in time, per table.
type DailyCounts struct {
	URLs          int64 `db:"urls"`
	RawProperties int64 `db:"raw_properties"`
	Properties    int64 `db:"properties"`
}

// CityCount is the number of new properties for one city.
type CityCount struct {
	City  string `db:"city"`
	Count int64  `db:"count"`
}

// SummaryReport is the end-of-run digest printed and sent to the notifier.
type SummaryReport struct {
	Since  time.Time
	Counts DailyCounts
	ByCity []CityCount
	Errors []string
}

package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"property-scraper/models"
)

var csvHeader = []string{
	"id", "external_id", "url", "city_id", "header", "type", "purpose", "price",
	"bath", "bedroom", "area", "added", "is_posted_by_agency", "available", "created_at",
}

// CSVWriter exports properties to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteProperties appends one row per property.
func (c *CSVWriter) WriteProperties(props []models.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range props {
		if err := c.writer.Write(propertyRow(p)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
		c.rows++
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Rows reports how many property rows were written.
func (c *CSVWriter) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func propertyRow(p models.Property) []string {
	extID, added := "", ""
	if p.ExternalID != nil {
		extID = strconv.FormatInt(*p.ExternalID, 10)
	}
	if p.Added != nil {
		added = p.Added.Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		extID,
		p.URL,
		strconv.FormatInt(p.CityID, 10),
		p.Header,
		p.Type,
		p.Purpose,
		strconv.FormatFloat(p.Price, 'f', -1, 64),
		strconv.Itoa(p.Bath),
		strconv.Itoa(p.Bedroom),
		strconv.FormatFloat(p.Area, 'f', -1, 64),
		added,
		strconv.FormatBool(p.IsPostedByAgency),
		strconv.FormatBool(p.Available),
		p.CreatedAt.Format(time.RFC3339),
	}
}

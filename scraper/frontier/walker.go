// Package frontier walks paginated listing indexes and records new listing URLs.
package frontier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"property-scraper/metrics"
	"property-scraper/models"
	"property-scraper/scraper"
	"property-scraper/scraper/extract"
	"property-scraper/utils"
)

const (
	selEntry     = `li[role="article"]`
	selLink      = `a[aria-label="Listing link"]`
	selCreated   = `span[aria-label="Listing creation date"]`
	selNoResults = `[aria-label="No results"]`
)

// PageFetcher fetches one page body.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// CandidateStore persists discovered URLs, ignoring ones already known.
type CandidateStore interface {
	InsertCandidates(ctx context.Context, candidates []models.CandidateURL) (int64, error)
}

// Partition is one city crossed with one property type and purpose.
type Partition struct {
	CityID       int64
	CityName     string
	CitySlug     string
	PropertyType string
	Purpose      string
}

// Section is the index path segment for the partition's type and purpose.
func (p Partition) Section() string {
	if p.Purpose != "Rent" {
		return p.PropertyType
	}
	if p.PropertyType == "Plots" || p.PropertyType == "Commercial" {
		return "Rentals_" + p.PropertyType
	}
	return "Rentals"
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%s/%s", p.CityName, p.PropertyType, p.Purpose)
}

// PageURL returns the newest-first index URL for page n of p.
func PageURL(baseURL string, p Partition, n int) string {
	return fmt.Sprintf("%s/%s/%s-%d.html?sort=date_desc", baseURL, p.Section(), p.CitySlug, n)
}

type entry struct {
	url   string
	added *time.Time
}

// Walker paginates one partition's index until it reaches listings that are
// no newer than the partition's freshness cutoff.
type Walker struct {
	baseURL  string
	base     *url.URL
	fetcher  PageFetcher
	store    CandidateStore
	maxPages int
	logger   *utils.Logger
	now      func() time.Time
}

// NewWalker creates a Walker. maxPages bounds a single walk.
func NewWalker(baseURL string, fetcher PageFetcher, store CandidateStore, maxPages int, logger *utils.Logger) (*Walker, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("frontier: parse base url: %w", err)
	}
	return &Walker{
		baseURL:  strings.TrimRight(baseURL, "/"),
		base:     base,
		fetcher:  fetcher,
		store:    store,
		maxPages: maxPages,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Walk fetches pages 1, 2, ... of p in order. It stops after the first page
// holding an entry added at or before cutoff, on an empty page, or on a 404
// or 410. Fresh entries are persisted and returned oldest first.
// A nil cutoff means nothing has been stored for the city yet.
func (w *Walker) Walk(ctx context.Context, p Partition, cutoff *time.Time) ([]models.CandidateURL, error) {
	var limit time.Time
	if cutoff != nil {
		limit = *cutoff
	}

	seen := utils.NewURLSet()
	var found []models.CandidateURL

	for page := 1; page <= w.maxPages; page++ {
		pageURL := PageURL(w.baseURL, p, page)
		body, err := w.fetcher.Fetch(ctx, pageURL)
		if errors.Is(err, scraper.ErrNotFound) || errors.Is(err, scraper.ErrGone) {
			w.logger.Debug("[frontier] %s: page %d not found, end of index", p, page)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frontier %s page %d: %w", p, page, err)
		}

		entries, err := w.parseIndex(body)
		if err != nil {
			return nil, fmt.Errorf("frontier %s page %d: %w", p, page, err)
		}
		if len(entries) == 0 {
			w.logger.Debug("[frontier] %s: page %d has no results", p, page)
			break
		}

		stale := false
		for _, e := range entries {
			if e.added != nil && !e.added.After(limit) {
				stale = true
				continue
			}
			if !seen.Add(e.url) {
				continue
			}
			found = append(found, models.CandidateURL{URL: e.url, CityID: p.CityID, Added: e.added})
		}
		if stale {
			w.logger.Debug("[frontier] %s: reached cutoff on page %d", p, page)
			break
		}
		if page == w.maxPages {
			w.logger.Warn("[frontier] %s: stopped at page limit %d before reaching cutoff", p, w.maxPages)
		}
	}

	reverse(found)

	if len(found) > 0 {
		inserted, err := w.store.InsertCandidates(ctx, found)
		if err != nil {
			return nil, fmt.Errorf("frontier %s: persist candidates: %w", p, err)
		}
		w.logger.Info("[frontier] %s: %d fresh listings (%d unique urls seen), %d new in frontier",
			p, len(found), seen.Size(), inserted)
		metrics.CandidatesDiscovered.WithLabelValues(p.CityName).Add(float64(len(found)))
	}
	return found, nil
}

func (w *Walker) parseIndex(body []byte) ([]entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index html: %w", err)
	}
	if doc.Find(selNoResults).Length() > 0 {
		return nil, nil
	}

	now := w.now()
	var entries []entry
	doc.Find(selEntry).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find(selLink).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		e := entry{url: w.base.ResolveReference(ref).String()}

		created := strings.TrimSpace(s.Find(selCreated).First().Text())
		created = strings.TrimSpace(strings.TrimPrefix(created, "Added:"))
		if t, err := extract.RelativeTime(created, now); err == nil {
			e.added = &t
		}
		entries = append(entries, e)
	})
	return entries, nil
}

func reverse(s []models.CandidateURL) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"property-scraper/models"
	"property-scraper/storage"
	"property-scraper/utils"
)

// SummaryService reports how much the pipeline stored today.
type SummaryService struct {
	store  storage.StateStore
	logger *utils.Logger
	now    func() time.Time
}

// NewSummaryService creates a SummaryService reading counts from store.
func NewSummaryService(store storage.StateStore, logger *utils.Logger) *SummaryService {
	return &SummaryService{store: store, logger: logger, now: time.Now}
}

// Generate counts rows created since local midnight. stageErrors are carried
// into the report unchanged.
func (s *SummaryService) Generate(ctx context.Context, stageErrors ...string) (*models.SummaryReport, error) {
	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	counts, err := s.store.CountCreatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	byCity, err := s.store.CountPropertiesByCity(ctx, since)
	if err != nil {
		return nil, err
	}

	return &models.SummaryReport{
		Since:  since,
		Counts: counts,
		ByCity: byCity,
		Errors: stageErrors,
	}, nil
}

// Text renders the report as a Slack message.
func Text(r *models.SummaryReport) string {
	var b strings.Builder
	b.WriteString("<!channel> :mega: *Scraper Completed*\n\n")
	b.WriteString("*Today's data stats are as follows:*\n")
	fmt.Fprintf(&b, "*Urls inserted:* %d\n", r.Counts.URLs)
	fmt.Fprintf(&b, "*Raw Properties inserted:* %d\n", r.Counts.RawProperties)
	fmt.Fprintf(&b, "*Properties inserted:* %d\n", r.Counts.Properties)
	for _, c := range r.ByCity {
		fmt.Fprintf(&b, "  • %s: %d\n", c.City, c.Count)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, ":warning: %s\n", e)
	}
	return b.String()
}

// Print writes a console rendering of the report.
func (s *SummaryService) Print(w io.Writer, r *models.SummaryReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  DAILY CRAWL SUMMARY (since %s)\033[0m\n", r.Since.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Rows created\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Frontier URLs   : \033[1m%d\033[0m\n", r.Counts.URLs)
	fmt.Fprintf(w, "  Raw properties  : \033[1m%d\033[0m\n", r.Counts.RawProperties)
	fmt.Fprintf(w, "  Properties      : \033[1m%d\033[0m\n", r.Counts.Properties)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  New properties by city\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByCity) == 0 {
		fmt.Fprintf(w, "  No new properties\n")
	} else {
		var peak int64
		for _, c := range r.ByCity {
			if c.Count > peak {
				peak = c.Count
			}
		}
		for _, c := range r.ByCity {
			fmt.Fprintf(w, "  %-20s %s (%d)\n", truncate(c.City, 18), bar(c.Count, peak, 30), c.Count)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;31m  Errors\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// bar scales n against peak into at most width blocks, with at least one
// block for any non-zero count.
func bar(n, peak int64, width int) string {
	if n <= 0 || peak <= 0 {
		return ""
	}
	blocks := int(n * int64(width) / peak)
	if blocks == 0 {
		blocks = 1
	}
	return strings.Repeat("█", blocks)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

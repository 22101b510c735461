package services

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"property-scraper/utils"
)

// stripSelector matches markup that carries no listing content.
const stripSelector = "script, style, link, meta, svg, noscript"

var blankLinesRegexp = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)

// Cleaner reduces fetched listing pages to the markup worth storing.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// CleanHTML removes scripts, styles, link, meta and svg elements, turns <br>
// into newlines and collapses blank lines.
func (c *Cleaner) CleanHTML(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("clean html: %w", err)
	}

	removed := doc.Find(stripSelector).Length()
	doc.Find(stripSelector).Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("clean html: render: %w", err)
	}

	out = normaliseLineBreaks(out)
	c.logger.Debug("[cleaner] %d bytes -> %d bytes (%d nodes stripped)", len(page), len(out), removed)
	return out, nil
}

func normaliseLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return blankLinesRegexp.ReplaceAllString(s, "\n")
}

// ExternalID derives the site's listing id from a listing URL: the third
// dash-separated token from the end, e.g. ".../house-48213577-1-4.html".
func ExternalID(url string) *int64 {
	parts := strings.Split(url, "-")
	if len(parts) < 3 {
		return nil
	}
	id, err := strconv.ParseInt(parts[len(parts)-3], 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

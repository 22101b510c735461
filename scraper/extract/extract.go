// Package extract turns one listing page into a typed Listing.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"property-scraper/models"
)

// ErrNotListingPage is returned when the markup has neither a header nor a
// details list.
var ErrNotListingPage = errors.New("not a listing page")

const (
	selHeader      = "h1"
	selLocation    = `div[aria-label="Property header"]`
	selDescription = `div[aria-label="Property description text"]`
	selCoverPhoto  = `img[aria-label="Cover Photo"]`
	selAgencyInfo  = `div[aria-label="Agency info"]`
	selDetails     = `ul[aria-label="Property details"] li`

	selAmenities       = "div#amenities-scrollable"
	selAmenityCategory = "div._040e4f65"
	selCategoryLabel   = "div.f5c4d39a"
	selFeatureItem     = "div.ef6b6a44 > div.c3b151ea"
	selFeatureLabel    = "div.e2a20506"

	agencyProfileLinkText = "view agency profile"
)

// Agency identifies the agency that posted a listing.
type Agency struct {
	Title      string
	ProfileURL string
}

// Listing is the structured content of one listing page. Zero values mean
// the field was absent.
type Listing struct {
	Header           string
	Location         string
	Description      string
	CoverPhotoURL    string
	IsPostedByAgency bool
	Agency           *Agency

	Type                  string
	Purpose               string
	Price                 float64
	Bath                  int
	Bedroom               int
	Area                  float64
	Added                 *time.Time
	InitialAmount         string
	MonthlyInstallment    string
	RemainingInstallments string

	Features models.FeatureList
	// Extra holds details-list entries with no dedicated field.
	Extra map[string]string
}

// Extract parses a listing page, resolving relative times against the current time.
func Extract(html string) (*Listing, error) {
	return ExtractAt(html, time.Now())
}

// ExtractAt parses a listing page, resolving relative times against now.
func ExtractAt(html string, now time.Time) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	l := &Listing{
		Header:      strings.TrimSpace(doc.Find(selHeader).First().Text()),
		Location:    strings.TrimSpace(doc.Find(selLocation).First().Text()),
		Description: strings.TrimSpace(doc.Find(selDescription).First().Text()),
	}
	if src, ok := doc.Find(selCoverPhoto).First().Attr("src"); ok {
		l.CoverPhotoURL = strings.TrimSpace(src)
	}

	agencyInfo := doc.Find(selAgencyInfo)
	l.IsPostedByAgency = agencyInfo.Length() > 0
	if l.IsPostedByAgency {
		l.Agency = agencyFrom(agencyInfo)
	}

	details := 0
	doc.Find(selDetails).Each(func(_ int, li *goquery.Selection) {
		key, value, ok := detailPair(li)
		if !ok {
			return
		}
		details++
		l.apply(key, value, now)
	})

	if l.Header == "" && details == 0 {
		return nil, ErrNotListingPage
	}

	l.Features = featuresFrom(doc)
	return l, nil
}

// detailPair reads one details row: the first non-empty span is the label,
// the remaining non-empty spans form the value.
func detailPair(li *goquery.Selection) (key, value string, ok bool) {
	var texts []string
	li.ChildrenFiltered("span").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			texts = append(texts, t)
		}
	})
	if len(texts) == 0 {
		return "", "", false
	}
	key = normaliseKey(texts[0])
	if key == "" {
		return "", "", false
	}
	return key, strings.Join(texts[1:], " "), true
}

func agencyFrom(info *goquery.Selection) *Agency {
	link := info.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.ToLower(strings.TrimSpace(a.Text())) == agencyProfileLinkText
	}).First()

	href, _ := link.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return nil
	}
	title, _ := link.Attr("title")
	return &Agency{Title: strings.TrimSpace(title), ProfileURL: href}
}

func featuresFrom(doc *goquery.Document) models.FeatureList {
	var out models.FeatureList
	doc.Find(selAmenities).Find(selAmenityCategory).Each(func(_ int, block *goquery.Selection) {
		f := models.Feature{
			Category: strings.TrimSpace(block.Find(selCategoryLabel).First().Text()),
			Features: []string{},
		}
		block.Find(selFeatureItem).Each(func(_ int, item *goquery.Selection) {
			f.Features = append(f.Features, strings.TrimSpace(item.Find(selFeatureLabel).Text()))
		})
		out = append(out, f)
	})
	return out
}

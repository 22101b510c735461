package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedRelativeTime is returned for relative times that are not
// "<n> <unit> ago" with unit between second and month.
var ErrUnsupportedRelativeTime = errors.New("unsupported relative time")

var (
	magnitudeRegexp  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	whitespaceRegexp = regexp.MustCompile(`\s+`)
)

// fieldKind selects the normaliser for a details-list key.
type fieldKind int

const (
	fieldText fieldKind = iota
	fieldPrice
	fieldAdded
	fieldArea
	fieldBath
	fieldBedroom
	fieldPurpose
	fieldType
	fieldInitialAmount
	fieldMonthlyInstallment
	fieldRemainingInstallments
)

var detailFields = map[string]fieldKind{
	"price":                  fieldPrice,
	"added":                  fieldAdded,
	"area":                   fieldArea,
	"bath":                   fieldBath,
	"baths":                  fieldBath,
	"bedroom":                fieldBedroom,
	"bedrooms":               fieldBedroom,
	"purpose":                fieldPurpose,
	"type":                   fieldType,
	"initial_amount":         fieldInitialAmount,
	"monthly_installment":    fieldMonthlyInstallment,
	"remaining_installments": fieldRemainingInstallments,
}

func kindOf(key string) fieldKind {
	if k, ok := detailFields[key]; ok {
		return k
	}
	return fieldText
}

// apply normalises value according to key and stores it on l.
func (l *Listing) apply(key, value string, now time.Time) {
	value = strings.TrimSpace(value)

	switch kindOf(key) {
	case fieldPrice:
		l.Price = ParsePrice(value)
	case fieldAdded:
		if t, err := RelativeTime(value, now); err == nil {
			l.Added = &t
		}
	case fieldArea:
		l.Area = ParseArea(value)
	case fieldBath:
		l.Bath = LeadingInt(value)
	case fieldBedroom:
		l.Bedroom = LeadingInt(value)
	case fieldPurpose:
		l.Purpose = Slug(value)
	case fieldType:
		l.Type = Slug(value)
	case fieldInitialAmount:
		l.InitialAmount = value
	case fieldMonthlyInstallment:
		l.MonthlyInstallment = value
	case fieldRemainingInstallments:
		l.RemainingInstallments = value
	case fieldText:
		if l.Extra == nil {
			l.Extra = make(map[string]string)
		}
		l.Extra[key] = value
	default:
		panic(fmt.Sprintf("extract: unhandled field kind %d", kindOf(key)))
	}
}

// normaliseKey turns a details label such as "Area (Marla)" into "area".
func normaliseKey(label string) string {
	if i := strings.Index(label, "("); i >= 0 {
		label = label[:i]
	}
	label = strings.ToLower(strings.TrimSpace(label))
	return whitespaceRegexp.ReplaceAllString(label, "_")
}

var priceUnitExponent = map[string]int{
	"Thousand": 3,
	"Lakh":     5,
	"Crore":    7,
	"Arab":     9,
}

// ParsePrice converts "<number> <unit>" to rupees. Any other shape yields 0.
func ParsePrice(s string) float64 {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0
	}
	exp, ok := priceUnitExponent[parts[1]]
	if !ok {
		return 0
	}
	m := magnitudeRegexp.FindString(parts[0])
	if m == "" {
		return 0
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return n * math.Pow10(exp)
}

var relativeUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
}

// RelativeTime converts text like "3 days ago" into now minus that span.
// Months are 30 days. Years are not supported.
func RelativeTime(s string, now time.Time) (time.Time, error) {
	parts := strings.Fields(strings.ToLower(s))
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedRelativeTime, s)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedRelativeTime, s)
	}
	unit, ok := relativeUnits[strings.TrimSuffix(parts[1], "s")]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedRelativeTime, s)
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedRelativeTime, s)
	}
	return now.Add(-time.Duration(n) * unit), nil
}

// ParseArea converts "<number> <unit>" to square feet. Unknown units and
// unparseable numbers yield 0.
func ParseArea(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, " ")
	var factor float64
	switch strings.Join(parts[1:], " ") {
	case "Marla":
		factor = 225
	case "Kanal":
		factor = 4500
	case "Sq. Yd.":
		factor = 9
	default:
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], ",", ""), 64)
	if err != nil {
		return 0
	}
	return n * factor
}

// LeadingInt returns the first space-separated token as an int, or 0.
func LeadingInt(s string) int {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return 0
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}

// Slug lowercases s and replaces each whitespace character with "_".
func Slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			return '_'
		}
		return r
	}, strings.ToLower(s))
}

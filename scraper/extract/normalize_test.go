package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"123.45 Crore", 1234500000},
		{"2 Crore", 20000000},
		{"85 Lakh", 8500000},
		{"1.2 Arab", 1200000000},
		{"500 Thousand", 500000},
		{"3.5 Million", 0},
		{"1 2 Crore", 0},
		{"Crore", 0},
		{"", 0},
		{"abc Lakh", 0},
	}
	for _, tt := range tests {
		got := ParsePrice(tt.input)
		assert.InDelta(t, tt.want, got, 1e-3, "ParsePrice(%q)", tt.input)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		input string
		ago   time.Duration
	}{
		{"30 seconds ago", 30 * time.Second},
		{"1 minute ago", time.Minute},
		{"5 hours ago", 5 * time.Hour},
		{"3 days ago", 3 * 24 * time.Hour},
		{"2 weeks ago", 14 * 24 * time.Hour},
		{"1 month ago", 30 * 24 * time.Hour},
		{"4 Months ago", 120 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := RelativeTime(tt.input, now)
		require.NoError(t, err, tt.input)
		assert.Equal(t, now.Add(-tt.ago), got, tt.input)
	}
}

func TestRelativeTimeUnsupported(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"1 year ago", "2 years ago", "a day ago", "few days ago", "", "yesterday", "-3 days ago", "4000 months ago", "9999999999 seconds ago"} {
		_, err := RelativeTime(input, now)
		assert.ErrorIs(t, err, ErrUnsupportedRelativeTime, input)
	}
}

func TestParseArea(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"10 Marla", 2250},
		{"1,000 Marla", 225000},
		{"1 Kanal", 4500},
		{"2.5 Kanal", 11250},
		{"200 Sq. Yd.", 1800},
		{"500 Sq. Ft.", 0},
		{"10", 0},
		{"", 0},
		{"ten Marla", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ParseArea(tt.input), 1e-9, "ParseArea(%q)", tt.input)
	}
}

func TestLeadingInt(t *testing.T) {
	assert.Equal(t, 3, LeadingInt("3 Baths"))
	assert.Equal(t, 5, LeadingInt("5"))
	assert.Equal(t, 0, LeadingInt(""))
	assert.Equal(t, 0, LeadingInt("none"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "for_sale", Slug("For Sale"))
	assert.Equal(t, "upper_portion", Slug("Upper Portion"))
	assert.Equal(t, "house", Slug("House"))
}

func TestNormaliseKey(t *testing.T) {
	tests := map[string]string{
		"Price":                   "price",
		"Area (Marla)":            "area",
		"Monthly Installment":     "monthly_installment",
		"Remaining  Installments": "remaining_installments",
		" Added ":                 "added",
	}
	for in, want := range tests {
		assert.Equal(t, want, normaliseKey(in), in)
	}
}

func TestKindOfCoversAllDetailKeys(t *testing.T) {
	for key, kind := range detailFields {
		assert.Equal(t, kind, kindOf(key))
		assert.NotEqual(t, fieldText, kind, key)
	}
	assert.Equal(t, fieldText, kindOf("location"))
}

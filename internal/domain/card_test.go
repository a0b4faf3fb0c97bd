package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func daysAgo(n int) *time.Time {
	t := time.Now().AddDate(0, 0, -n)
	return &t
}

func TestHasAllMarkersIsWordExact(t *testing.T) {
	tests := []struct {
		name    string
		markers string
		want    []string
		match   bool
	}{
		{"exact single", "python", []string{"python"}, true},
		{"prefix does not match", "specific", []string{"spec"}, false},
		{"substring does not match", "javascript", []string{"java"}, false},
		{"all of several", "python specific", []string{"specific", "python"}, true},
		{"one missing", "python specific", []string{"specific", "go"}, false},
		{"empty want always matches", "python", nil, true},
		{"empty markers", "", []string{"python"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Card{Markers: tt.markers}
			assert.Equal(t, tt.match, c.HasAllMarkers(tt.want))
		})
	}
}

func TestHasAnyMarker(t *testing.T) {
	c := Card{Markers: "python specific"}
	assert.True(t, c.HasAnyMarker([]string{"python", "go"}))
	assert.False(t, c.HasAnyMarker([]string{"go", "rust"}))
	assert.False(t, c.HasAnyMarker(nil))
	// Word-exact here too.
	assert.False(t, c.HasAnyMarker([]string{"spec"}))
}

func TestDue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		card Card
		due  bool
	}{
		{"never revised is always due", Card{Score: 100}, true},
		{"score reached", Card{Score: 2, DateUpdated: daysAgo(3)}, true},
		{"score exactly reached", Card{Score: 3, DateUpdated: daysAgo(3)}, true},
		{"score not reached", Card{Score: 5, DateUpdated: daysAgo(1)}, false},
		{"zero score revised today", Card{Score: 0, DateUpdated: daysAgo(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, tt.card.Due(now))
		})
	}
}

func TestRevisedOn(t *testing.T) {
	now := time.Now()
	assert.False(t, Card{}.RevisedOn(now))
	assert.True(t, Card{DateUpdated: daysAgo(0)}.RevisedOn(now))
	assert.False(t, Card{DateUpdated: daysAgo(1)}.RevisedOn(now))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	b := time.Date(2026, 3, 2, 0, 1, 0, 0, time.Local)
	// Whole calendar days, not 24h periods.
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, 0, DaysBetween(a, a))
	assert.Equal(t, -1, DaysBetween(b, a))
}

func TestSplitMarkers(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"python", []string{"python"}},
		{"english, vocabulary", []string{"english", "vocabulary"}},
		{"a,b c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitMarkers(tt.raw), "raw %q", tt.raw)
	}
	assert.Empty(t, SplitMarkers(""))
	assert.Empty(t, SplitMarkers("  "))
}

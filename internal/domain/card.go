package domain

import (
	"strings"
	"time"
)

// DateLayout is the canonical on-disk date format. Dates are stored as
// plain YYYY-MM-DD strings so they sort and compare without any driver
// level timestamp handling.
const DateLayout = "2006-01-02"

// Card represents a single question-answer entry together with its
// revision state.
type Card struct {
	ID          int
	PosInSeries int
	Question    string
	Answer      string
	Markers     string
	Series      string
	DateCreated time.Time
	DateUpdated *time.Time // nil until the first revision
	Score       int
}

// MarkerSet returns the markers as individual whole-word tokens.
func (c Card) MarkerSet() []string {
	return strings.Fields(c.Markers)
}

// HasAllMarkers reports whether the card carries every marker in want.
// Matching is whole-word: a card tagged "specific" does not match "spec".
func (c Card) HasAllMarkers(want []string) bool {
	have := c.MarkerSet()
	for _, m := range want {
		if !containsWord(have, m) {
			return false
		}
	}
	return true
}

// HasAnyMarker reports whether the card carries at least one marker in want.
func (c Card) HasAnyMarker(want []string) bool {
	have := c.MarkerSet()
	for _, m := range want {
		if containsWord(have, m) {
			return true
		}
	}
	return false
}

// Due reports whether the card is ready for revision on the given day.
// A card that was never revised is always due; otherwise it is due once
// at least Score whole days have elapsed since the last revision.
func (c Card) Due(today time.Time) bool {
	if c.DateUpdated == nil {
		return true
	}
	return c.Score <= DaysBetween(*c.DateUpdated, today)
}

// RevisedOn reports whether the card's last revision happened on the
// given calendar day.
func (c Card) RevisedOn(day time.Time) bool {
	return c.DateUpdated != nil && SameDay(*c.DateUpdated, day)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SplitMarkers tokenizes a raw marker argument. Markers may be separated
// by spaces, commas, or both ("python, specific" and "python specific"
// are equivalent).
func SplitMarkers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

func containsWord(words []string, w string) bool {
	for _, have := range words {
		if have == w {
			return true
		}
	}
	return false
}

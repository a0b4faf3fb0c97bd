// Package buffer formats cards into editable text buffers and parses
// the user's edits back into card fields. The layout is shared by the
// new, edit, and revise flows:
//
//	Markers: [python specific]
//	Series: [sorting]
//	No. in series: 1
//	----------------------------- (100 dashes)
//	<question text>
//	----------------------------- (edit buffers only)
//	<answer text>
package buffer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/percolant/knards-cli/internal/domain"
)

// Divider separates the metadata header and the text sections.
var Divider = strings.Repeat("-", 100)

// ErrBadFormat is returned when a submitted buffer does not follow the
// expected layout. The edit is recoverable: callers re-prompt within
// their retry budget.
var ErrBadFormat = errors.New("buffer: bad format")

// Default placeholder texts seeded into a fresh card buffer.
const (
	QuestionPlaceholder = "Here, type in the question text for the new card."
	AnswerPlaceholder   = "Here, type in the answer text for the new card."
)

// Header renders the three metadata lines plus the divider.
func Header(card domain.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Markers: [%s]\n", card.Markers)
	fmt.Fprintf(&b, "Series: [%s]\n", card.Series)
	fmt.Fprintf(&b, "No. in series: %d\n", card.PosInSeries)
	b.WriteString(Divider + "\n")
	return b.String()
}

// FormatNew renders a single-section capture buffer: header plus one
// body (the question or the answer, depending on which is prompted
// first).
func FormatNew(card domain.Card, body string) string {
	return Header(card) + body + "\n"
}

// FormatEdit renders the full two-section edit buffer for an existing
// card.
func FormatEdit(card domain.Card) string {
	var b strings.Builder
	b.WriteString(Header(card))
	b.WriteString(card.Question + "\n")
	b.WriteString(Divider + "\n")
	b.WriteString(card.Answer + "\n")
	return b.String()
}

// ParseNew extracts the metadata and the single body section from a
// capture buffer. The first three lines must be the metadata header and
// the fourth the divider.
func ParseNew(text string) (meta domain.Card, body string, err error) {
	lines := strings.Split(text, "\n")
	if len(lines) < 4 {
		return domain.Card{}, "", fmt.Errorf("%w: buffer must keep the three header lines and the divider", ErrBadFormat)
	}
	meta, err = parseHeader(lines[:3])
	if err != nil {
		return domain.Card{}, "", err
	}
	if strings.TrimSpace(lines[3]) != Divider {
		return domain.Card{}, "", fmt.Errorf("%w: fourth line must be the divider (100 dashes)", ErrBadFormat)
	}
	body = strings.Trim(strings.Join(lines[4:], "\n"), "\n")
	return meta, body, nil
}

// ParseEdit extracts metadata, question, and answer from an edit buffer.
// The buffer must contain exactly two dividers.
func ParseEdit(text string) (domain.Card, error) {
	if strings.Count(text, Divider) != 2 {
		return domain.Card{}, fmt.Errorf("%w: buffer must contain exactly two dividers (100 dashes)", ErrBadFormat)
	}

	sections := strings.SplitN(text, Divider, 3)
	headerLines := strings.Split(strings.Trim(sections[0], "\n"), "\n")
	if len(headerLines) < 3 {
		return domain.Card{}, fmt.Errorf("%w: buffer must keep the three header lines", ErrBadFormat)
	}
	meta, err := parseHeader(headerLines[:3])
	if err != nil {
		return domain.Card{}, err
	}
	meta.Question = strings.Trim(sections[1], "\n")
	meta.Answer = strings.Trim(sections[2], "\n")
	return meta, nil
}

func parseHeader(lines []string) (domain.Card, error) {
	var card domain.Card

	markers, ok := bracketed(lines[0], "Markers: [")
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: first line must be of the form: Markers: [markers for the card]", ErrBadFormat)
	}
	card.Markers = markers

	series, ok := bracketed(lines[1], "Series: [")
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: second line must be of the form: Series: [name of the series]", ErrBadFormat)
	}
	card.Series = series

	rest, ok := strings.CutPrefix(lines[2], "No. in series: ")
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: third line must be of the form: No. in series: #", ErrBadFormat)
	}
	pos, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || pos < 0 {
		return domain.Card{}, fmt.Errorf("%w: series position must be a non-negative integer", ErrBadFormat)
	}
	card.PosInSeries = pos

	return card, nil
}

func bracketed(line, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", false
	}
	val, ok := strings.CutSuffix(strings.TrimRight(rest, " "), "]")
	if !ok {
		return "", false
	}
	return val, true
}

// ListEntry renders one card for the list buffer.
func ListEntry(card domain.Card, showQuestion, showAnswer bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Card #%d | %s | %d in \"%s\" | %s | %s | %d\n",
		card.ID,
		card.Markers,
		card.PosInSeries,
		card.Series,
		card.DateCreated.Format(domain.DateLayout),
		formatUpdated(card.DateUpdated),
		card.Score,
	)
	if showQuestion {
		b.WriteString("\n" + card.Question + "\n")
		if showAnswer {
			b.WriteString(Divider + "\n")
		}
	}
	if showAnswer {
		b.WriteString("\n" + card.Answer + "\n")
	}
	return b.String()
}

func formatUpdated(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format(domain.DateLayout)
}

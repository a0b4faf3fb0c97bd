// Package revise drives an interactive revision session: it builds the
// queue of due cards, resolves series readiness, collects the user's
// self-assessed grade through the edit buffer, and persists the new
// score.
package revise

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/percolant/knards-cli/internal/buffer"
	"github.com/percolant/knards-cli/internal/domain"
	"github.com/percolant/knards-cli/internal/editor"
	"github.com/percolant/knards-cli/internal/selection"
)

// ErrNothingToRevise is the expected outcome when no card passes the
// readiness and marker constraints.
var ErrNothingToRevise = errors.New("revise: no cards ready for revision")

// errAborted is returned internally when the user declines to continue.
var errAborted = errors.New("revise: session aborted")

// CardStore is the slice of the storage gateway the session needs.
type CardStore interface {
	GetAllCards() ([]domain.Card, error)
	GetSeriesSet(name string) (map[int]domain.Card, error)
	RecordRevision(id, score int, when time.Time) error
}

// Session runs one revision pass. Store, Editor, and Confirm must be
// set; the rest default sensibly.
type Session struct {
	Store   CardStore
	Editor  editor.Editor
	Confirm editor.Confirmer

	Logger     *slog.Logger
	Now        func() time.Time
	MaxRetries int // grading retry budget per card, default 3
}

// Stats summarizes a finished (or aborted) session.
type Stats struct {
	Revised int
	Skipped int
	Aborted bool
}

const gradeInstruction = "Delete all contents of this buffer and leave one of the following options:"

const attemptInstruction = "Replace the question with your answer, then save the buffer and close the editor to submit"

var digits = regexp.MustCompile(`\d+`)

// Run executes a full revision pass over the cards matching the marker
// constraints. Storage failures while grading a single card are logged
// and the session moves on; an abort at a prompt ends the pass cleanly
// with everything already graded left committed.
func (s *Session) Run(includeMarkers, excludeMarkers []string) (Stats, error) {
	now := s.now()

	all, err := s.Store.GetAllCards()
	if err != nil {
		return Stats{}, err
	}
	if len(all) == 0 {
		return Stats{}, ErrNothingToRevise
	}

	due, err := selection.Select(all, selection.Options{
		RevisableOnly:  true,
		IncludeMarkers: includeMarkers,
		ExcludeMarkers: excludeMarkers,
	}, now)
	if err != nil {
		return Stats{}, err
	}

	queue := buildQueue(due)
	if len(queue) == 0 {
		return Stats{}, ErrNothingToRevise
	}

	var stats Stats
	seen := make(map[int]bool)

	for _, card := range queue {
		if seen[card.ID] {
			continue
		}

		if card.Series != "" {
			set, err := s.Store.GetSeriesSet(card.Series)
			if err != nil {
				s.logger().Error("failed to load series", "series", card.Series, "error", err)
				stats.Skipped++
				continue
			}
			// The whole series is revised as one unit, or not at all
			// this pass. A skipped series counts once, and its members
			// are retired from the queue so they are not re-checked.
			if !seriesReady(set, now) {
				for _, member := range set {
					seen[member.ID] = true
				}
				stats.Skipped++
				continue
			}
			for _, member := range inPositionOrder(set) {
				seen[member.ID] = true
				if err := s.reviseOne(member, len(set), now, &stats); err != nil {
					stats.Aborted = true
					return stats, nil
				}
			}
			continue
		}

		if !card.Due(now) {
			stats.Skipped++
			continue
		}
		seen[card.ID] = true
		if err := s.reviseOne(card, 0, now, &stats); err != nil {
			stats.Aborted = true
			return stats, nil
		}
	}

	return stats, nil
}

// buildQueue orders the due set: cards never revised come first, oldest
// creation date leading, followed by previously revised cards with the
// lowest score and oldest revision leading.
func buildQueue(cards []domain.Card) []domain.Card {
	var fresh, revised []domain.Card
	for _, card := range cards {
		if card.DateUpdated == nil {
			fresh = append(fresh, card)
		} else {
			revised = append(revised, card)
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].DateCreated.Before(fresh[j].DateCreated)
	})
	sort.SliceStable(revised, func(i, j int) bool {
		if revised[i].Score != revised[j].Score {
			return revised[i].Score < revised[j].Score
		}
		return revised[i].DateUpdated.Before(*revised[j].DateUpdated)
	})

	return append(fresh, revised...)
}

// seriesReady reports whether every card in the series is individually
// due. An empty set is never ready.
func seriesReady(set map[int]domain.Card, today time.Time) bool {
	if len(set) == 0 {
		return false
	}
	for _, card := range set {
		if !card.Due(today) {
			return false
		}
	}
	return true
}

func inPositionOrder(set map[int]domain.Card) []domain.Card {
	positions := make([]int, 0, len(set))
	for pos := range set {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	cards := make([]domain.Card, 0, len(set))
	for _, pos := range positions {
		cards = append(cards, set[pos])
	}
	return cards
}

// reviseOne runs the two-buffer grading flow for a single card. A
// storage failure or an exhausted retry budget skips the card without a
// write; only a declined "next card" prompt stops the session.
func (s *Session) reviseOne(card domain.Card, seriesLen int, now time.Time, stats *Stats) error {
	attempt, err := s.collectAttempt(card, seriesLen)
	if err != nil {
		s.logger().Error("failed to collect answer attempt", "card", card.ID, "error", err)
		stats.Skipped++
		return nil
	}

	graded, err := s.collectGrade(card, attempt, seriesLen, now)
	if err != nil {
		return err
	}
	if graded {
		stats.Revised++
	} else {
		stats.Skipped++
	}

	next, err := s.Confirm.Confirm("Next card?", true)
	if err != nil {
		return fmt.Errorf("failed to confirm: %w", err)
	}
	if !next {
		return errAborted
	}
	return nil
}

// collectAttempt shows the question and returns whatever the user typed
// in its place. The buffer is accepted with both dividers intact (the
// attempt sits between them) or with both removed (the whole buffer is
// the attempt); any other divider count is re-prompted within the retry
// budget.
func (s *Session) collectAttempt(card domain.Card, seriesLen int) (string, error) {
	text := s.title(card, seriesLen) +
		buffer.Divider + "\n" +
		card.Question + "\n" +
		buffer.Divider + "\n" +
		attemptInstruction

	for tries := 0; tries < s.maxRetries(); tries++ {
		out, err := s.Editor.Edit(text)
		if err != nil {
			return "", err
		}

		switch strings.Count(out, buffer.Divider) {
		case 2:
			return strings.Trim(strings.SplitN(out, buffer.Divider, 3)[1], "\n"), nil
		case 0:
			return strings.Trim(out, "\n"), nil
		}

		s.logger().Warn("malformed attempt buffer", "card", card.ID, "reason", "keep both dividers or remove both")
		if tries == s.maxRetries()-1 {
			break
		}
		retry, err := s.Confirm.Confirm("Try and resubmit?", true)
		if err != nil {
			return "", fmt.Errorf("failed to confirm: %w", err)
		}
		if !retry {
			break
		}
		text = out
	}
	return "", errors.New("attempt buffer must keep both dividers or neither")
}

// collectGrade shows the attempt next to the stored answer plus the
// grade menu, and keeps prompting until a valid grade arrives or the
// retry budget runs out. Returns whether a grade was persisted.
func (s *Session) collectGrade(card domain.Card, attempt string, seriesLen int, now time.Time) (bool, error) {
	menu := GradeMenu(card.Score)
	prompt := s.title(card, seriesLen) +
		buffer.Divider + "\n" +
		attempt + "\n" +
		buffer.Divider + "\n" +
		card.Answer + "\n" +
		buffer.Divider + "\n" +
		gradeInstruction + "\n" +
		fmt.Sprintf("I know this well (card's score becomes equal %d)\n", menu.Full) +
		fmt.Sprintf("I've made some minor mistakes (card's score becomes equal %d)\n", menu.Partial) +
		fmt.Sprintf("I had problems with remembering this/I've made critical mistakes (card's score becomes equal %d)\n", menu.Critical) +
		fmt.Sprintf("I do not know this at all (card's score becomes equal %d)", menu.None)

	for tries := 0; tries < s.maxRetries(); tries++ {
		out, err := s.Editor.Edit(prompt)
		if err != nil {
			s.logger().Error("failed to collect grade", "card", card.ID, "error", err)
			return false, nil
		}

		grade, perr := parseGrade(out, menu)
		if perr == nil {
			if err := s.Store.RecordRevision(card.ID, grade, now); err != nil {
				// Report and move on; the rest of the session is not
				// affected by one card's write failure.
				s.logger().Error("failed to record revision", "card", card.ID, "error", err)
				return false, nil
			}
			return true, nil
		}

		s.logger().Warn("invalid grade input", "card", card.ID, "reason", perr)
		if tries == s.maxRetries()-1 {
			break
		}
		retry, err := s.Confirm.Confirm("Try and resubmit?", true)
		if err != nil {
			return false, fmt.Errorf("failed to confirm: %w", err)
		}
		if !retry {
			break
		}
	}
	return false, nil
}

// parseGrade accepts a buffer holding exactly one of the offered menu
// lines (or just its number). Anything else is rejected.
func parseGrade(out string, menu Menu) (int, error) {
	out = strings.Trim(out, "\n")
	if len(strings.Split(out, "\n")) > 1 {
		return 0, errors.New("more than one line left in the buffer")
	}
	nums := digits.FindAllString(out, -1)
	if len(nums) != 1 {
		return 0, errors.New("buffer must contain exactly one number")
	}
	grade, err := strconv.Atoi(nums[0])
	if err != nil {
		return 0, fmt.Errorf("bad number: %w", err)
	}
	if !menu.Contains(grade) {
		return 0, fmt.Errorf("%d is not one of the offered grades", grade)
	}
	return grade, nil
}

func (s *Session) title(card domain.Card, seriesLen int) string {
	updated := "Never"
	if card.DateUpdated != nil {
		updated = card.DateUpdated.Format(domain.DateLayout)
	}
	if seriesLen > 0 {
		return fmt.Sprintf("Card #%d | %s | %d/%d in %q | %s | %s | %d\n",
			card.ID, card.Markers, card.PosInSeries, seriesLen, card.Series,
			card.DateCreated.Format(domain.DateLayout), updated, card.Score)
	}
	return fmt.Sprintf("Card #%d | %s | %s | %s | %d\n",
		card.ID, card.Markers,
		card.DateCreated.Format(domain.DateLayout), updated, card.Score)
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Session) maxRetries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return 3
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

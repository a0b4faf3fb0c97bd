package revise

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percolant/knards-cli/internal/buffer"
	"github.com/percolant/knards-cli/internal/domain"
)

type revision struct {
	id    int
	score int
}

type fakeStore struct {
	cards       []domain.Card
	revisions   []revision
	fail        map[int]error
	seriesReads int
}

func (f *fakeStore) GetAllCards() ([]domain.Card, error) {
	return append([]domain.Card(nil), f.cards...), nil
}

func (f *fakeStore) GetSeriesSet(name string) (map[int]domain.Card, error) {
	f.seriesReads++
	set := make(map[int]domain.Card)
	for _, c := range f.cards {
		if c.Series == name {
			set[c.PosInSeries] = c
		}
	}
	return set, nil
}

func (f *fakeStore) RecordRevision(id, score int, _ time.Time) error {
	if err := f.fail[id]; err != nil {
		return err
	}
	f.revisions = append(f.revisions, revision{id, score})
	return nil
}

// scriptEditor replays canned buffer contents, one per Edit call.
type scriptEditor struct {
	responses []string
}

func (e *scriptEditor) Edit(string) (string, error) {
	if len(e.responses) == 0 {
		return "", nil
	}
	r := e.responses[0]
	e.responses = e.responses[1:]
	return r, nil
}

// fakeConfirm answers "Next card?" from next and everything else from
// resubmit; exhausted scripts answer yes.
type fakeConfirm struct {
	next     []bool
	resubmit []bool
}

func (c *fakeConfirm) Confirm(prompt string, _ bool) (bool, error) {
	script := &c.resubmit
	if strings.HasPrefix(prompt, "Next") {
		script = &c.next
	}
	if len(*script) == 0 {
		return true, nil
	}
	v := (*script)[0]
	*script = (*script)[1:]
	return v, nil
}

func daysAgo(n int) *time.Time {
	t := time.Now().AddDate(0, 0, -n)
	return &t
}

func newSession(store *fakeStore, ed *scriptEditor, confirm *fakeConfirm) *Session {
	return &Session{Store: store, Editor: ed, Confirm: confirm}
}

func revisedIDs(revs []revision) []int {
	out := make([]int, 0, len(revs))
	for _, r := range revs {
		out = append(out, r.id)
	}
	return out
}

// Grading responses: an attempt, then a grade that is valid for a
// score-0 card (menu 2/0/1/0).
func gradeOK(n int) []string {
	var out []string
	for range n {
		out = append(out, "my answer attempt", "1")
	}
	return out
}

func TestRunNothingToRevise(t *testing.T) {
	s := newSession(&fakeStore{}, &scriptEditor{}, &fakeConfirm{})
	_, err := s.Run(nil, nil)
	assert.ErrorIs(t, err, ErrNothingToRevise)

	s = newSession(&fakeStore{cards: []domain.Card{
		{ID: 1, Score: 9, DateUpdated: daysAgo(1)},
	}}, &scriptEditor{}, &fakeConfirm{})
	_, err = s.Run(nil, nil)
	assert.ErrorIs(t, err, ErrNothingToRevise)
}

func TestRunQueueOrder(t *testing.T) {
	created := func(n int) time.Time { return time.Now().AddDate(0, 0, -n) }
	store := &fakeStore{cards: []domain.Card{
		{ID: 1, DateCreated: created(1)},                           // fresh, newer
		{ID: 2, DateCreated: created(3)},                           // fresh, older
		{ID: 3, DateCreated: created(9), Score: 1, DateUpdated: daysAgo(5)},
		{ID: 4, DateCreated: created(9), Score: 0, DateUpdated: daysAgo(2)},
	}}
	s := newSession(store, &scriptEditor{responses: gradeOK(4)}, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Revised)
	// Never-revised cards first (oldest creation leading), then
	// previously revised by lowest score.
	assert.Equal(t, []int{2, 1, 4, 3}, revisedIDs(store.revisions))
}

func TestRunMarkerScoping(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{
		{ID: 1, Markers: "python specific"},
		{ID: 2, Markers: "javascript specific"},
	}}
	s := newSession(store, &scriptEditor{responses: gradeOK(1)}, &fakeConfirm{})

	stats, err := s.Run([]string{"specific"}, []string{"python"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, []int{2}, revisedIDs(store.revisions))
}

func TestRunSeriesSkippedUntilAllDue(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{
		{ID: 1, Series: "s", PosInSeries: 1},
		{ID: 2, Series: "s", PosInSeries: 2},
		{ID: 3, Series: "s", PosInSeries: 3, Score: 9, DateUpdated: daysAgo(1)}, // not due
	}}
	ed := &scriptEditor{responses: gradeOK(3)}
	s := newSession(store, ed, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	// One sibling not due: the whole series is left alone this pass,
	// counted as a single skip and looked up once.
	assert.Zero(t, stats.Revised)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, store.seriesReads)
	assert.Empty(t, store.revisions)
	assert.Len(t, ed.responses, len(gradeOK(3)), "editor must not have been opened")
}

func TestRunSeriesRevisedInPositionOrder(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{
		{ID: 7, Series: "s", PosInSeries: 2},
		{ID: 8, Series: "s", PosInSeries: 3},
		{ID: 9, Series: "s", PosInSeries: 1},
	}}
	s := newSession(store, &scriptEditor{responses: gradeOK(3)}, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Revised)
	assert.Equal(t, []int{9, 7, 8}, revisedIDs(store.revisions))
}

func TestRunInvalidGradeRetriesThenSucceeds(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	ed := &scriptEditor{responses: []string{
		"my answer attempt",
		"7", // not one of the offered grades for score 0
		"2",
	}}
	s := newSession(store, ed, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, []revision{{1, 2}}, store.revisions)
}

func TestRunGradeMustBeSingleNumber(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	ed := &scriptEditor{responses: []string{
		"my answer attempt",
		"2 1", // two numbers on one line
		"I know this well (card's score becomes equal 2)",
	}}
	s := newSession(store, ed, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, []revision{{1, 2}}, store.revisions)
}

func TestRunRetryBudgetExhaustedSkipsWithoutWrite(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	ed := &scriptEditor{responses: []string{
		"my answer attempt",
		"9", "9", "9",
	}}
	s := newSession(store, ed, &fakeConfirm{})
	s.MaxRetries = 3

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Revised)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, store.revisions)
}

func TestRunStorageFailureContinuesSession(t *testing.T) {
	store := &fakeStore{
		cards: []domain.Card{
			{ID: 1, DateCreated: time.Now().AddDate(0, 0, -2)},
			{ID: 2, DateCreated: time.Now().AddDate(0, 0, -1)},
		},
		fail: map[int]error{1: errors.New("disk full")},
	}
	s := newSession(store, &scriptEditor{responses: gradeOK(2)}, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []int{2}, revisedIDs(store.revisions))
}

func TestRunAbortKeepsCommittedGrades(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{
		{ID: 1, DateCreated: time.Now().AddDate(0, 0, -2)},
		{ID: 2, DateCreated: time.Now().AddDate(0, 0, -1)},
	}}
	confirm := &fakeConfirm{next: []bool{false}}
	s := newSession(store, &scriptEditor{responses: gradeOK(2)}, confirm)

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.True(t, stats.Aborted)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, []int{1}, revisedIDs(store.revisions))
}

func TestRunDeclinedResubmitSkipsCard(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	ed := &scriptEditor{responses: []string{"my answer attempt", "9"}}
	confirm := &fakeConfirm{resubmit: []bool{false}}
	s := newSession(store, ed, confirm)

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Revised)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, store.revisions)
}

func TestRunAttemptRejectsStrayDivider(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	ed := &scriptEditor{responses: []string{
		buffer.Divider + "\nhalf an answer", // one divider left in place
		"my answer attempt",
		"1",
	}}
	s := newSession(store, ed, &fakeConfirm{})

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revised)
	assert.Equal(t, []revision{{1, 1}}, store.revisions)
}

func TestRunAttemptDividerBudgetExhausted(t *testing.T) {
	store := &fakeStore{cards: []domain.Card{{ID: 1}}}
	bad := buffer.Divider + "\nhalf an answer"
	ed := &scriptEditor{responses: []string{bad, bad, bad}}
	s := newSession(store, ed, &fakeConfirm{})
	s.MaxRetries = 3

	stats, err := s.Run(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Revised)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, store.revisions)
	assert.Empty(t, ed.responses, "all three attempts consumed")
}

func TestParseGradeAgainstMenu(t *testing.T) {
	menu := GradeMenu(5) // {8, 3, 1, 0}
	tests := []struct {
		in    string
		grade int
		ok    bool
	}{
		{"8", 8, true},
		{"I know this well (card's score becomes equal 8)", 8, true},
		{"0", 0, true},
		{"5", 0, false},       // not offered
		{"8\n3", 0, false},    // two lines
		{"8 and 3", 0, false}, // two numbers
		{"", 0, false},
		{"well done", 0, false},
	}
	for _, tt := range tests {
		grade, err := parseGrade(tt.in, menu)
		if tt.ok {
			require.NoError(t, err, "input %q", tt.in)
			assert.Equal(t, tt.grade, grade, "input %q", tt.in)
		} else {
			assert.Error(t, err, "input %q", tt.in)
		}
	}
}

func TestBuildQueueStability(t *testing.T) {
	sameDay := daysAgo(4)
	older := daysAgo(9)
	cards := []domain.Card{
		{ID: 1, Score: 2, DateUpdated: sameDay},
		{ID: 2, Score: 2, DateUpdated: older},
		{ID: 3, Score: 1, DateUpdated: sameDay},
	}
	queue := buildQueue(cards)
	// Lowest score first, then oldest revision.
	assert.Equal(t, []int{3, 2, 1}, []int{queue[0].ID, queue[1].ID, queue[2].ID})
}

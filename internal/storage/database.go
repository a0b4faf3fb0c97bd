package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/percolant/knards-cli/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Bootstrap creates the store file and the cards table. It fails with
// ErrAlreadyExists if the file is already present; an existing store is
// never overwritten.
func Bootstrap(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, mapError(err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", mapError(err))
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", mapError(err))
	}
	return nil
}

// Open connects to an existing store. The store file must have been
// created by Bootstrap first; a missing file or a missing cards table is
// reported as ErrNotInitialized.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermission, path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", mapError(err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", mapError(err))
	}

	var name string
	err = db.QueryRow(`
		SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'cards'
	`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("%w: cards table missing in %s", ErrNotInitialized, path)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect store: %w", mapError(err))
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateCard inserts a new card and returns its assigned id. The id is
// always the smallest positive integer not currently in use; ids freed
// by deletion are reused immediately to keep the id space dense. Any id
// carried by the input card is ignored.
func (db *DB) CreateCard(card domain.Card) (int, error) {
	rows, err := db.conn.Query(`SELECT id FROM cards ORDER BY id ASC`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan ids: %w", mapError(err))
	}
	defer rows.Close()

	freeID := 1
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan id row: %w", mapError(err))
		}
		if id != freeID {
			break
		}
		freeID++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan ids: %w", mapError(err))
	}
	// Release the read connection before writing; an open rows handle
	// holds a lock that would make the insert fail with SQLITE_BUSY.
	rows.Close()

	created := card.DateCreated
	if created.IsZero() {
		created = time.Now()
	}

	_, err = db.conn.Exec(`
		INSERT INTO cards (id, pos_in_series, question, answer, markers, series, date_created, date_updated, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		freeID,
		card.PosInSeries,
		card.Question,
		card.Answer,
		card.Markers,
		nullString(card.Series),
		created.Format(domain.DateLayout),
		nullDate(card.DateUpdated),
		card.Score,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert card: %w", mapError(err))
	}
	return freeID, nil
}

// GetCardByID retrieves a single card. A missing id is reported as
// ErrCardNotFound so callers can tell "no such card" from a store
// malfunction.
func (db *DB) GetCardByID(id int) (domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT id, pos_in_series, question, answer, markers, series, date_created, date_updated, score
		FROM cards WHERE id = ?
	`, id)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, fmt.Errorf("%w: #%d", ErrCardNotFound, id)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to get card #%d: %w", id, mapError(err))
	}
	return card, nil
}

// GetAllCards returns every card ordered by id. An empty store yields an
// empty slice, not an error.
func (db *DB) GetAllCards() ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, pos_in_series, question, answer, markers, series, date_created, date_updated, score
		FROM cards ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", mapError(err))
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", mapError(err))
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", mapError(err))
	}
	return cards, nil
}

// GetSeriesSet returns every card in the named series keyed by its
// position. Position collisions are not prevented by the schema; the
// last row read wins.
func (db *DB) GetSeriesSet(name string) (map[int]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT id, pos_in_series, question, answer, markers, series, date_created, date_updated, score
		FROM cards WHERE series = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get series %q: %w", name, mapError(err))
	}
	defer rows.Close()

	set := make(map[int]domain.Card)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", mapError(err))
		}
		set[card.PosInSeries] = card
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get series %q: %w", name, mapError(err))
	}
	return set, nil
}

// GetLastCard returns the most recently created card, ties broken by the
// highest id. With markers given, only cards carrying all of them are
// considered. Reports ErrCardNotFound when nothing qualifies.
func (db *DB) GetLastCard(markers []string) (domain.Card, error) {
	if len(markers) == 0 {
		row := db.conn.QueryRow(`
			SELECT id, pos_in_series, question, answer, markers, series, date_created, date_updated, score
			FROM cards ORDER BY date_created DESC, id DESC LIMIT 1
		`)
		card, err := scanCard(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("%w: store is empty", ErrCardNotFound)
		}
		if err != nil {
			return domain.Card{}, fmt.Errorf("failed to get last card: %w", mapError(err))
		}
		return card, nil
	}

	// Marker matching is whole-word over a single text column, so the
	// filter runs in Go.
	cards, err := db.GetAllCards()
	if err != nil {
		return domain.Card{}, err
	}

	var candidates []domain.Card
	for _, card := range cards {
		if card.HasAllMarkers(markers) {
			candidates = append(candidates, card)
		}
	}
	if len(candidates) == 0 {
		return domain.Card{}, fmt.Errorf("%w: no cards carry markers %v", ErrCardNotFound, markers)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].DateCreated.Equal(candidates[j].DateCreated) {
			return candidates[i].DateCreated.After(candidates[j].DateCreated)
		}
		return candidates[i].ID > candidates[j].ID
	})
	return candidates[0], nil
}

// EditContent overwrites the card's content fields (question, answer,
// markers, series, position) without touching the revision clock. Score
// and date_updated are owned by RecordRevision.
func (db *DB) EditContent(card domain.Card) error {
	res, err := db.conn.Exec(`
		UPDATE cards
		SET question = ?, answer = ?, markers = ?, series = ?, pos_in_series = ?
		WHERE id = ?
	`,
		card.Question,
		card.Answer,
		card.Markers,
		nullString(card.Series),
		card.PosInSeries,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card #%d: %w", card.ID, mapError(err))
	}
	return oneRowAffected(res, card.ID)
}

// RecordRevision persists the outcome of one grading step: the card's
// score becomes the chosen grade and date_updated is stamped with the
// given day.
func (db *DB) RecordRevision(id, score int, when time.Time) error {
	if score < 0 {
		return fmt.Errorf("score must be non-negative, got %d", score)
	}
	res, err := db.conn.Exec(`
		UPDATE cards SET date_updated = ?, score = ? WHERE id = ?
	`, when.Format(domain.DateLayout), score, id)
	if err != nil {
		return fmt.Errorf("failed to record revision for card #%d: %w", id, mapError(err))
	}
	return oneRowAffected(res, id)
}

// DeleteByID removes exactly one card. A missing id is reported, not
// silently ignored.
func (db *DB) DeleteByID(id int) error {
	res, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card #%d: %w", id, mapError(err))
	}
	return oneRowAffected(res, id)
}

// DeleteByMarkers removes every card whose marker set is a superset of
// the given markers and returns the deleted ids.
func (db *DB) DeleteByMarkers(markers []string) ([]int, error) {
	if len(markers) == 0 {
		return nil, errors.New("storage: delete by markers requires at least one marker")
	}

	cards, err := db.GetAllCards()
	if err != nil {
		return nil, err
	}

	var doomed []int
	for _, card := range cards {
		if card.HasAllMarkers(markers) {
			doomed = append(doomed, card.ID)
		}
	}
	if len(doomed) == 0 {
		return nil, fmt.Errorf("%w: no cards carry markers %v", ErrCardNotFound, markers)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin delete: %w", mapError(err))
	}
	for _, id := range doomed {
		if _, err := tx.Exec(`DELETE FROM cards WHERE id = ?`, id); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to delete card #%d: %w", id, mapError(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", mapError(err))
	}
	return doomed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		card    domain.Card
		series  sql.NullString
		created string
		updated sql.NullString
	)
	err := row.Scan(
		&card.ID,
		&card.PosInSeries,
		&card.Question,
		&card.Answer,
		&card.Markers,
		&series,
		&created,
		&updated,
		&card.Score,
	)
	if err != nil {
		return domain.Card{}, err
	}

	card.Series = series.String

	card.DateCreated, err = time.Parse(domain.DateLayout, created)
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: bad date_created %q", ErrCorrupt, created)
	}
	if updated.Valid {
		t, err := time.Parse(domain.DateLayout, updated.String)
		if err != nil {
			return domain.Card{}, fmt.Errorf("%w: bad date_updated %q", ErrCorrupt, updated.String)
		}
		card.DateUpdated = &t
	}
	return card, nil
}

func oneRowAffected(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", mapError(err))
	}
	if n == 0 {
		return fmt.Errorf("%w: #%d", ErrCardNotFound, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateLayout)
}

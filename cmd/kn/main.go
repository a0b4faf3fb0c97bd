// Command kn is a flashcard manager driven from the terminal and a text
// editor. Cards live in a single local SQLite file; revision follows a
// simple spaced-repetition heuristic where a card's score is the number
// of days until it is due again.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/percolant/knards-cli/internal/buffer"
	"github.com/percolant/knards-cli/internal/config"
	"github.com/percolant/knards-cli/internal/domain"
	"github.com/percolant/knards-cli/internal/editor"
	"github.com/percolant/knards-cli/internal/revise"
	"github.com/percolant/knards-cli/internal/selection"
	"github.com/percolant/knards-cli/internal/storage"
)

// Exit codes, kept stable for scripting:
//
//	0 success
//	1 unknown error
//	2 CLI args misuse
//	3 invalid input (options, buffer content)
//	4 storage operation error
//	5 store not found / not initialized
//	6 card or card set not found
//	7 user failed to fill in the buffer within the retry budget
const (
	exitOK = iota
	exitUnknown
	exitUsage
	exitBadInput
	exitStorage
	exitNoStore
	exitNotFound
	exitBufferGivenUp
)

// errGivenUp marks an exhausted buffer retry budget.
var errGivenUp = errors.New("gave up on the buffer")

const usage = `Usage: kn <command> [flags]

Commands:
  bootstrap-db   Initialize the card store
  new            Create a new card through editor buffers
  list           Render a card set into an editor buffer
  edit           Edit one card's content
  delete         Delete cards by id or by markers
  revise         Run a revision session
  status         Show store totals and today's progress

Run 'kn <command> --help' for command flags.`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "bootstrap-db":
		err = cmdBootstrap(args[1:])
	case "new":
		err = cmdNew(args[1:])
	case "list":
		err = cmdList(args[1:])
	case "edit":
		err = cmdEdit(args[1:])
	case "delete":
		err = cmdDelete(args[1:])
	case "revise":
		err = cmdRevise(args[1:])
	case "status":
		err = cmdStatus(args[1:])
	case "help", "-h", "--help":
		fmt.Println(usage)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "kn: unknown command %q\n%s\n", args[0], usage)
		return exitUsage
	}

	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "kn:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, errGivenUp):
		return exitBufferGivenUp
	case errors.Is(err, storage.ErrCardNotFound),
		errors.Is(err, revise.ErrNothingToRevise):
		return exitNotFound
	case errors.Is(err, storage.ErrNotInitialized):
		return exitNoStore
	case errors.Is(err, storage.ErrCorrupt),
		errors.Is(err, storage.ErrPermission),
		errors.Is(err, storage.ErrDuplicateID),
		errors.Is(err, storage.ErrAlreadyExists):
		return exitStorage
	case errors.Is(err, selection.ErrInvalidOptions),
		errors.Is(err, buffer.ErrBadFormat):
		return exitBadInput
	default:
		return exitUnknown
	}
}

// errUsage marks CLI argument misuse.
var errUsage = errors.New("bad arguments")

func timeNow() time.Time { return time.Now() }

// commonFlags registers the flags every subcommand shares. Defaults
// mirror config.Default so unset flags never mask file or env values.
func commonFlags(fs *pflag.FlagSet) {
	def := config.Default()
	fs.String("db", def.DB, "path to the card store file")
	fs.String("editor", def.Editor, "editor command for buffer round-trips")
}

func parseFlags(fs *pflag.FlagSet, args []string) (config.Config, error) {
	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return config.Config{}, err
		}
		return config.Config{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openEditor(cfg config.Config) (editor.Editor, error) {
	cmd, err := editor.Resolve(cfg.Editor, map[string]string{"EDITOR": os.Getenv("EDITOR")})
	if err != nil {
		return nil, err
	}
	return editor.External{Command: cmd}, nil
}

func cmdBootstrap(args []string) error {
	fs := pflag.NewFlagSet("bootstrap-db", pflag.ContinueOnError)
	commonFlags(fs)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if err := storage.Bootstrap(cfg.DB); err != nil {
		return err
	}
	fmt.Printf("%s was successfully created.\n", cfg.DB)
	return nil
}

func cmdNew(args []string) error {
	fs := pflag.NewFlagSet("new", pflag.ContinueOnError)
	commonFlags(fs)
	answerFirst := fs.Bool("af", false, "prompt for the answer first")
	copyLast := fs.Bool("copy-last", false, "seed metadata from the most recently created card")
	copyFromID := fs.Int("copy-from-id", 0, "seed metadata from the card with this id")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ed, err := openEditor(cfg)
	if err != nil {
		return err
	}
	confirm := editor.Terminal{}

	base := domain.Card{
		Question:    buffer.QuestionPlaceholder,
		Answer:      buffer.AnswerPlaceholder,
		PosInSeries: 1,
	}
	switch {
	case *copyLast:
		base, err = db.GetLastCard(nil)
	case *copyFromID != 0:
		base, err = db.GetCardByID(*copyFromID)
	}
	if err != nil {
		return err
	}

	firstBody, secondBody := base.Question, base.Answer
	if *answerFirst {
		firstBody, secondBody = base.Answer, base.Question
	}

	meta, first, err := captureNew(ed, confirm, buffer.FormatNew(base, firstBody), cfg.Retries)
	if err != nil {
		return err
	}
	// The second buffer re-shows the metadata captured so far; the
	// version saved last wins.
	meta, second, err := captureNew(ed, confirm, buffer.FormatNew(meta, secondBody), cfg.Retries)
	if err != nil {
		return err
	}

	// A fresh card never inherits the template's id, score, or dates.
	card := domain.Card{
		Markers:     meta.Markers,
		Series:      meta.Series,
		PosInSeries: meta.PosInSeries,
		Question:    first,
		Answer:      second,
	}
	if *answerFirst {
		card.Question, card.Answer = second, first
	}

	id, err := db.CreateCard(card)
	if err != nil {
		return err
	}
	fmt.Printf("Card #%d was successfully created.\n", id)
	return nil
}

func cmdList(args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	commonFlags(fs)
	showQ := fs.Bool("q", true, "include question text")
	showA := fs.Bool("a", true, "include answer text")
	inc := fs.String("inc", "", "markers every listed card must have")
	exc := fs.String("exc", "", "markers no listed card may have")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	cards, err := db.GetAllCards()
	if err != nil {
		return err
	}

	set, err := selection.Select(cards, selection.Options{
		IncludeMarkers: domain.SplitMarkers(*inc),
		ExcludeMarkers: domain.SplitMarkers(*exc),
		HideQuestion:   !*showQ,
		HideAnswer:     !*showA,
	}, timeNow())
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return fmt.Errorf("%w: nothing to list", storage.ErrCardNotFound)
	}

	var b strings.Builder
	for _, card := range set {
		b.WriteString(buffer.ListEntry(card, *showQ, *showA))
	}

	ed, err := openEditor(cfg)
	if err != nil {
		return err
	}
	// The list is a read-only view; the buffer contents are discarded.
	_, err = ed.Edit(b.String())
	return err
}

func cmdEdit(args []string) error {
	fs := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	commonFlags(fs)
	id := fs.Int("id", 0, "id of the card to edit")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if *id == 0 {
		return fmt.Errorf("%w: edit requires --id", errUsage)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	card, err := db.GetCardByID(*id)
	if err != nil {
		return err
	}

	ed, err := openEditor(cfg)
	if err != nil {
		return err
	}

	edited, err := captureEdit(ed, editor.Terminal{}, buffer.FormatEdit(card), cfg.Retries)
	if err != nil {
		return err
	}
	edited.ID = card.ID

	if err := db.EditContent(edited); err != nil {
		return err
	}
	fmt.Printf("Card #%d was successfully updated.\n", card.ID)
	return nil
}

func cmdDelete(args []string) error {
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	commonFlags(fs)
	id := fs.Int("id", 0, "id of the card to delete")
	markers := fs.String("m", "", "markers every deleted card must have")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if *id == 0 && *markers == "" {
		return fmt.Errorf("%w: delete requires --id or --m", errUsage)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if *id != 0 {
		if err := db.DeleteByID(*id); err != nil {
			return err
		}
		fmt.Printf("Card #%d was successfully deleted.\n", *id)
		return nil
	}

	deleted, err := db.DeleteByMarkers(domain.SplitMarkers(*markers))
	if err != nil {
		return err
	}
	fmt.Printf("%d cards were deleted.\n", len(deleted))
	return nil
}

func cmdRevise(args []string) error {
	fs := pflag.NewFlagSet("revise", pflag.ContinueOnError)
	commonFlags(fs)
	inc := fs.String("inc", "", "markers every revised card must have")
	exc := fs.String("exc", "", "markers no revised card may have")
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	ed, err := openEditor(cfg)
	if err != nil {
		return err
	}

	session := &revise.Session{
		Store:      db,
		Editor:     ed,
		Confirm:    editor.Terminal{},
		MaxRetries: cfg.Retries,
	}
	stats, err := session.Run(domain.SplitMarkers(*inc), domain.SplitMarkers(*exc))
	if err != nil {
		return err
	}

	fmt.Printf("Revised %d cards, skipped %d.\n", stats.Revised, stats.Skipped)
	if stats.Aborted {
		fmt.Println("Session aborted; everything graded so far is saved.")
	}
	return nil
}

func cmdStatus(args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	commonFlags(fs)
	cfg, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	cards, err := db.GetAllCards()
	if err != nil {
		return err
	}

	now := timeNow()
	today, err := selection.Select(cards, selection.Options{TodayOnly: true}, now)
	if err != nil {
		return err
	}
	due, err := selection.Select(cards, selection.Options{RevisableOnly: true}, now)
	if err != nil {
		return err
	}

	fmt.Printf("There're %d cards in the DB file in total.\n", len(cards))
	fmt.Printf("You've revised %d cards today.\n", len(today))
	fmt.Printf("There're %d more cards ready for revision today.\n", len(due))
	return nil
}

// captureNew keeps re-opening the buffer until it parses as a capture
// buffer or the retry budget runs out.
func captureNew(ed editor.Editor, confirm editor.Confirmer, initial string, retries int) (domain.Card, string, error) {
	text := initial
	for try := 0; try < retries; try++ {
		out, err := ed.Edit(text)
		if err != nil {
			return domain.Card{}, "", err
		}
		meta, body, perr := buffer.ParseNew(out)
		if perr == nil {
			return meta, body, nil
		}
		fmt.Fprintln(os.Stderr, perr)
		text = out
		if try == retries-1 {
			break
		}
		again, err := confirm.Confirm("Try and resubmit?", true)
		if err != nil {
			return domain.Card{}, "", err
		}
		if !again {
			break
		}
	}
	return domain.Card{}, "", errGivenUp
}

// captureEdit is captureNew for the two-section edit buffer.
func captureEdit(ed editor.Editor, confirm editor.Confirmer, initial string, retries int) (domain.Card, error) {
	text := initial
	for try := 0; try < retries; try++ {
		out, err := ed.Edit(text)
		if err != nil {
			return domain.Card{}, err
		}
		card, perr := buffer.ParseEdit(out)
		if perr == nil {
			return card, nil
		}
		fmt.Fprintln(os.Stderr, perr)
		text = out
		if try == retries-1 {
			break
		}
		again, err := confirm.Confirm("Try and resubmit?", true)
		if err != nil {
			return domain.Card{}, err
		}
		if !again {
			break
		}
	}
	return domain.Card{}, errGivenUp
}

// Package selection implements pure, side-effect-free filtering and
// projection over an in-memory card collection.
package selection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/percolant/knards-cli/internal/domain"
)

// ErrInvalidOptions is returned when Options fail validation. No
// filtering is attempted on malformed input.
var ErrInvalidOptions = errors.New("selection: invalid options")

// Options declares the constraints applied by Select. The zero value is
// the identity: every card passes through unmodified.
type Options struct {
	// RevisableOnly keeps only cards that are due for revision today:
	// never revised, or at least Score days past the last revision.
	RevisableOnly bool

	// IncludeMarkers keeps only cards whose marker set contains every
	// listed marker. Markers match as whole words.
	IncludeMarkers []string `validate:"dive,marker"`

	// ExcludeMarkers drops any card carrying at least one listed marker.
	ExcludeMarkers []string `validate:"dive,marker"`

	// TodayOnly keeps only cards already revised today.
	TodayOnly bool

	// HideQuestion and HideAnswer blank the corresponding field in the
	// returned projection. Storage is never touched.
	HideQuestion bool
	HideAnswer   bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// A marker is a single non-empty word: no whitespace, no commas.
	must(v.RegisterValidation("marker", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.ContainsAny(s, " \t\n\r,")
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate checks the option set without touching any card data.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// Select applies the option constraints to cards and returns the
// filtered projection. Stages run in a fixed order, each narrowing the
// previous stage's output: revisable, include-markers, exclude-markers,
// today-only, question blanking, answer blanking. The input slice is
// never mutated; an empty result is a normal outcome.
func Select(cards []domain.Card, opts Options, today time.Time) ([]domain.Card, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	out := make([]domain.Card, 0, len(cards))
	for _, card := range cards {
		if opts.RevisableOnly && !card.Due(today) {
			continue
		}
		if len(opts.IncludeMarkers) > 0 && !card.HasAllMarkers(opts.IncludeMarkers) {
			continue
		}
		if len(opts.ExcludeMarkers) > 0 && card.HasAnyMarker(opts.ExcludeMarkers) {
			continue
		}
		if opts.TodayOnly && !card.RevisedOn(today) {
			continue
		}
		if opts.HideQuestion {
			card.Question = ""
		}
		if opts.HideAnswer {
			card.Answer = ""
		}
		out = append(out, card)
	}
	return out, nil
}

// Package selection translates user-facing selection flags into a validated
// iteration plan over the catalog walk. Validation is local and upfront: bad
// coordinates fail before any network access.
package selection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wyu/textfetch/internal/catalog"
)

// ErrInvalidSelection indicates user-supplied coordinates that cannot
// describe any record.
var ErrInvalidSelection = errors.New("invalid selection")

// Kind discriminates the selection mode variants.
type Kind int

const (
	KindNone Kind = iota
	KindBySequence
	KindRange
	KindByID
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindBySequence:
		return "sequence"
	case KindRange:
		return "range"
	case KindByID:
		return "id"
	case KindLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// Mode is the tagged selection variant. Exactly one kind is effective per
// run; higher-precedence flags win when several are supplied.
type Mode struct {
	Kind Kind

	// KindBySequence
	Sequence int

	// KindRange (inclusive)
	First, Last int

	// KindByID
	ID string

	// KindLegacy
	Table  int
	Item   int
	Limit  int // 0 = unbounded
	Single int // 0 = unset; Nth record counted from the start coordinate
}

// Flags carries the raw CLI selection inputs.
type Flags struct {
	Sequence int
	Range    string
	BookID   string
	Single   int
	Limit    int
	Table    int
	Item     int
}

// Parse resolves flags into a Mode, applying the precedence
// book-id > sequence > range > legacy, and validates it.
func Parse(f Flags) (Mode, error) {
	var m Mode
	switch {
	case f.BookID != "":
		m = Mode{Kind: KindByID, ID: f.BookID}
	case f.Sequence != 0:
		m = Mode{Kind: KindBySequence, Sequence: f.Sequence}
	case f.Range != "":
		first, last, err := parseRange(f.Range)
		if err != nil {
			return Mode{}, err
		}
		m = Mode{Kind: KindRange, First: first, Last: last}
	case f.Single != 0 || f.Limit != 0 || f.Table != 0 || f.Item != 0:
		m = Mode{Kind: KindLegacy, Table: f.Table, Item: f.Item, Limit: f.Limit, Single: f.Single}
	default:
		return Mode{}, fmt.Errorf("%w: no selection specified", ErrInvalidSelection)
	}

	if err := m.validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

// parseRange accepts "a-b" or a bare "a" for a single-record range.
func parseRange(s string) (int, int, error) {
	first, last := s, s
	if i := strings.Index(s, "-"); i >= 0 {
		first, last = s[:i], s[i+1:]
	}

	a, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: range %q is not of the form \"a-b\"", ErrInvalidSelection, s)
	}
	b, err := strconv.Atoi(strings.TrimSpace(last))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: range %q is not of the form \"a-b\"", ErrInvalidSelection, s)
	}
	return a, b, nil
}

func (m Mode) validate() error {
	switch m.Kind {
	case KindBySequence:
		if m.Sequence < 1 {
			return fmt.Errorf("%w: sequence number %d must be >= 1", ErrInvalidSelection, m.Sequence)
		}
	case KindRange:
		if m.First < 1 {
			return fmt.Errorf("%w: range start %d must be >= 1", ErrInvalidSelection, m.First)
		}
		if m.First > m.Last {
			return fmt.Errorf("%w: range start %d exceeds range end %d", ErrInvalidSelection, m.First, m.Last)
		}
	case KindByID:
		if _, err := uuid.Parse(m.ID); err != nil {
			return fmt.Errorf("%w: record id %q is not a UUID", ErrInvalidSelection, m.ID)
		}
	case KindLegacy:
		if m.Table < 0 {
			return fmt.Errorf("%w: table %d must be >= 0", ErrInvalidSelection, m.Table)
		}
		if m.Item < 0 {
			return fmt.Errorf("%w: item %d must be >= 0", ErrInvalidSelection, m.Item)
		}
		if m.Limit < 0 {
			return fmt.Errorf("%w: limit %d must be >= 0", ErrInvalidSelection, m.Limit)
		}
		if m.Single < 0 {
			return fmt.Errorf("%w: single %d must be >= 0", ErrInvalidSelection, m.Single)
		}
	}
	return nil
}

// Start returns the walker coordinate the mode begins at. Sequence, range
// and id selections must walk from the beginning so sequence numbers stay
// identical to an uninterrupted walk.
func (m Mode) Start() catalog.Coord {
	if m.Kind == KindLegacy {
		return catalog.Coord{Catalog: m.Table, Item: m.Item}
	}
	return catalog.Coord{}
}

// Multi reports whether the mode can select more than one record.
func (m Mode) Multi() bool {
	switch m.Kind {
	case KindRange:
		return m.First != m.Last
	case KindLegacy:
		return m.Single == 0 && m.Limit != 1
	default:
		return false
	}
}

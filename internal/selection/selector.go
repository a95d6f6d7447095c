package selection

import (
	"fmt"

	"github.com/wyu/textfetch/internal/catalog"
)

// Decision is the selector's verdict for one walked record.
type Decision int

const (
	// Skip means the record is outside the selection; keep walking.
	Skip Decision = iota
	// Take means the record is selected for processing.
	Take
	// Stop means nothing further in the walk can be selected.
	Stop
)

// Selector applies a Mode to the walker's record stream. It is stateful and
// single-use: feed every walked record to Decide in order, then call Done.
type Selector struct {
	mode  Mode
	seen  int // records seen since the start coordinate
	taken int
	found bool
}

// NewSelector creates a selector for the given validated mode.
func NewSelector(mode Mode) *Selector {
	return &Selector{mode: mode}
}

// Decide classifies the next walked record.
func (s *Selector) Decide(rec catalog.Record) Decision {
	s.seen++

	switch s.mode.Kind {
	case KindByID:
		if rec.ID != s.mode.ID {
			return Skip
		}
		s.found = true
		s.taken++
		return Take

	case KindBySequence:
		switch {
		case rec.GlobalSequence < s.mode.Sequence:
			return Skip
		case rec.GlobalSequence == s.mode.Sequence:
			s.found = true
			s.taken++
			return Take
		default:
			return Stop
		}

	case KindRange:
		switch {
		case rec.GlobalSequence < s.mode.First:
			return Skip
		case rec.GlobalSequence > s.mode.Last:
			return Stop
		default:
			s.found = true
			s.taken++
			return Take
		}

	case KindLegacy:
		if s.mode.Single > 0 {
			if s.seen < s.mode.Single {
				return Skip
			}
			if s.seen > s.mode.Single {
				return Stop
			}
			s.found = true
			s.taken++
			return Take
		}
		if s.mode.Limit > 0 && s.taken >= s.mode.Limit {
			return Stop
		}
		s.found = true
		s.taken++
		return Take
	}

	return Stop
}

// Exhausted reports whether Decide can only return Stop from now on, letting
// the caller cut the walk short after a single-record selection.
func (s *Selector) Exhausted() bool {
	switch s.mode.Kind {
	case KindByID, KindBySequence:
		return s.found
	case KindRange:
		return s.taken > 0 && s.taken == s.mode.Last-s.mode.First+1
	case KindLegacy:
		if s.mode.Single > 0 {
			return s.found
		}
		return s.mode.Limit > 0 && s.taken >= s.mode.Limit
	}
	return false
}

// Unmet returns the sequence numbers a range selection expected but the
// walk ended before reaching, in ascending order. Nil for satisfied
// selections, for ranges that matched nothing (Done reports those), and
// for non-range modes.
func (s *Selector) Unmet() []int {
	if s.mode.Kind != KindRange || !s.found {
		return nil
	}
	var unmet []int
	for n := s.mode.First + s.taken; n <= s.mode.Last; n++ {
		unmet = append(unmet, n)
	}
	return unmet
}

// Taken returns how many records were selected.
func (s *Selector) Taken() int {
	return s.taken
}

// Done validates the outcome once the walk has ended. Selections that
// matched nothing the catalog can provide are selection errors.
func (s *Selector) Done() error {
	if s.found {
		return nil
	}

	switch s.mode.Kind {
	case KindByID:
		return fmt.Errorf("%w: record id %s not present in any catalog", ErrInvalidSelection, s.mode.ID)
	case KindBySequence:
		return fmt.Errorf("%w: sequence number %d beyond catalog size", ErrInvalidSelection, s.mode.Sequence)
	case KindRange:
		return fmt.Errorf("%w: range %d-%d beyond catalog size", ErrInvalidSelection, s.mode.First, s.mode.Last)
	case KindLegacy:
		if s.mode.Single > 0 {
			return fmt.Errorf("%w: single record %d beyond walk from %s", ErrInvalidSelection, s.mode.Single, s.mode.Start())
		}
		return fmt.Errorf("%w: no records at or after %s", ErrInvalidSelection, s.mode.Start())
	}
	return nil
}

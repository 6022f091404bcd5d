package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dbsmedya/imagebatch/internal/types"
)

var (
	// ErrUnknownCandidate is returned when toggling an id the set does not hold.
	ErrUnknownCandidate = errors.New("unknown candidate")

	// ErrSelectionFrozen is returned when the selection changes during a run.
	ErrSelectionFrozen = errors.New("selection is frozen while a run is active")
)

// Candidate is one proposed mutation. Everything except Selected is fixed
// once the builder returns it.
type Candidate struct {
	ID        int
	RecordIDs []int64
	Label     string // what the operator sees, usually the first file
	Field     string
	OldValue  string
	NewValue  string
	Selected  bool
}

// Builder scans a record snapshot and proposes candidates. Builders are
// read-only and deterministic: the same records give the same candidates.
type Builder interface {
	Build(ctx context.Context, records []types.Record) ([]Candidate, error)
}

// Selection holds the operator's choice over a candidate set. It is safe
// for concurrent use.
type Selection struct {
	mu     sync.RWMutex
	items  []Candidate
	index  map[int]int
	frozen bool
}

// NewSelection copies candidates into a new selection.
func NewSelection(candidates []Candidate) *Selection {
	s := &Selection{
		items: make([]Candidate, len(candidates)),
		index: make(map[int]int, len(candidates)),
	}
	for i, c := range candidates {
		c.RecordIDs = append([]int64(nil), c.RecordIDs...)
		s.items[i] = c
		s.index[c.ID] = i
	}
	return s
}

// Toggle selects or deselects one candidate.
func (s *Selection) Toggle(id int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrSelectionFrozen
	}
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCandidate, id)
	}
	s.items[i].Selected = selected
	return nil
}

// SelectAll selects or deselects every candidate.
func (s *Selection) SelectAll(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrSelectionFrozen
	}
	for i := range s.items {
		s.items[i].Selected = selected
	}
	return nil
}

// AnySelected reports whether at least one candidate is selected.
func (s *Selection) AnySelected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.items {
		if c.Selected {
			return true
		}
	}
	return false
}

// Count returns the number of selected candidates and the total.
func (s *Selection) Count() (selected, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.items {
		if c.Selected {
			selected++
		}
	}
	return selected, len(s.items)
}

// Len is the number of candidates.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Candidates returns a copy of every candidate with its current selection.
func (s *Selection) Candidates() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCandidates(s.items, false)
}

// ApplySet returns a snapshot of the selected candidates in candidate order.
// Later selection changes are not reflected in the returned slice.
func (s *Selection) ApplySet() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCandidates(s.items, true)
}

// Freeze rejects selection changes until Thaw.
func (s *Selection) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Thaw re-enables selection changes.
func (s *Selection) Thaw() {
	s.mu.Lock()
	s.frozen = false
	s.mu.Unlock()
}

// Frozen reports whether the selection is frozen.
func (s *Selection) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

func copyCandidates(items []Candidate, selectedOnly bool) []Candidate {
	out := make([]Candidate, 0, len(items))
	for _, c := range items {
		if selectedOnly && !c.Selected {
			continue
		}
		c.RecordIDs = append([]int64(nil), c.RecordIDs...)
		out = append(out, c)
	}
	return out
}

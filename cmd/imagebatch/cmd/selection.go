package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbsmedya/imagebatch/internal/engine"
)

// selectSpec is a parsed --select value.
type selectSpec struct {
	all    bool
	ranges []idRange
}

// idRange is an inclusive span of candidate IDs.
type idRange struct {
	lo, hi int
}

// parseSelectSpec accepts "all", "none" (or empty) and comma separated
// candidate IDs and ranges such as "1,3,5-7".
func parseSelectSpec(s string) (selectSpec, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "none":
		return selectSpec{}, nil
	case "all":
		return selectSpec{all: true}, nil
	}

	var spec selectSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRange(part)
		if err != nil {
			return selectSpec{}, err
		}
		spec.ranges = append(spec.ranges, idRange{lo: lo, hi: hi})
	}
	return spec, nil
}

func parseRange(part string) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil || lo <= 0 {
		return 0, 0, fmt.Errorf("invalid selection %q", part)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("invalid selection range %q", part)
	}
	return lo, hi, nil
}

// applySelection replaces the selection with spec. Ranges reaching past
// the last candidate are rejected before anything is toggled.
func applySelection(sel *engine.Selection, spec selectSpec) error {
	n := sel.Len()
	for _, r := range spec.ranges {
		if r.hi > n {
			return fmt.Errorf("select %s: only %d candidates: %w", r, n, engine.ErrUnknownCandidate)
		}
	}
	if err := sel.SelectAll(spec.all); err != nil {
		return err
	}
	for _, r := range spec.ranges {
		for id := r.lo; id <= r.hi; id++ {
			if err := sel.Toggle(id, true); err != nil {
				return fmt.Errorf("select %d: %w", id, err)
			}
		}
	}
	return nil
}

func (r idRange) String() string {
	if r.lo == r.hi {
		return strconv.Itoa(r.lo)
	}
	return fmt.Sprintf("%d-%d", r.lo, r.hi)
}

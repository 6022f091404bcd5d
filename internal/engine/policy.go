package engine

import "fmt"

// Policy decides what happens to staged mutations when a run is cancelled
// part way through its first pass.
type Policy int

const (
	// DiscardOnCancel drops all staged mutations. Used by operations whose
	// first pass is pure computation.
	DiscardOnCancel Policy = iota

	// CommitWhatRan commits the mutations of the items that did run, so the
	// store matches side effects that already happened.
	CommitWhatRan

	// AbortNoCommit drops all staged mutations for operations that must not
	// be partially applied. First-pass side effects are not rolled back.
	AbortNoCommit
)

func (p Policy) String() string {
	switch p {
	case DiscardOnCancel:
		return "discard-on-cancel"
	case CommitWhatRan:
		return "commit-what-ran"
	case AbortNoCommit:
		return "abort-no-commit"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// CommitOnCancel reports whether the second pass still runs after a cancel.
func (p Policy) CommitOnCancel() bool {
	return p == CommitWhatRan
}

// CancelMessage describes the outcome of a cancelled run under p.
func (p Policy) CancelMessage(attempted, total int) string {
	switch p {
	case CommitWhatRan:
		return fmt.Sprintf("Cancelled after %d of %d items; changes for processed items were saved", attempted, total)
	case AbortNoCommit:
		return fmt.Sprintf("Cancelled after %d of %d items; update aborted, nothing was saved", attempted, total)
	default:
		return fmt.Sprintf("Cancelled after %d of %d items; no changes were saved", attempted, total)
	}
}

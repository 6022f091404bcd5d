package engine

import "time"

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Feedback status values.
const (
	FeedbackFailed  = "failed"
	FeedbackSkipped = "skipped"
)

// ItemFeedback is the per-item note recorded for failed or skipped items.
type ItemFeedback struct {
	CandidateID int     `yaml:"candidate_id"`
	RecordIDs   []int64 `yaml:"record_ids,flow"`
	Status      string  `yaml:"status"`
	Message     string  `yaml:"message"`
}

// RunResult is the outcome of one apply run.
type RunResult struct {
	RunID              string         `yaml:"run_id"`
	Operation          string         `yaml:"operation"`
	Policy             Policy         `yaml:"-"`
	Cancelled          bool           `yaml:"cancelled"`
	ItemsAttempted     int            `yaml:"items_attempted"`
	ItemsSucceeded     int            `yaml:"items_succeeded"`
	ItemsFailed        int            `yaml:"items_failed"`
	MutationsCommitted int            `yaml:"mutations_committed"`
	Committed          bool           `yaml:"committed"`
	Err                error          `yaml:"-"`
	Feedback           []ItemFeedback `yaml:"feedback,omitempty"`
	Duration           time.Duration  `yaml:"duration"`
}

// Outcome classifies the run. A systemic error wins over cancellation.
func (r RunResult) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeFailed
	case r.Cancelled:
		return OutcomeCancelled
	default:
		return OutcomeCompleted
	}
}

// Message is the one-line summary shown to the operator.
func (r RunResult) Message(total int) string {
	switch r.Outcome() {
	case OutcomeFailed:
		return "Failed: " + r.Err.Error()
	case OutcomeCancelled:
		return r.Policy.CancelMessage(r.ItemsAttempted, total)
	}
	if r.ItemsFailed > 0 {
		return "Completed with errors"
	}
	return "Completed"
}

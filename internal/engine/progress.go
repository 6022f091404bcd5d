// Package engine runs cancellable two-pass batch mutations: candidates are
// built from a record snapshot, the operator selects a subset, and a
// background task applies the selection with throttled progress reporting
// and a single batched store write.
package engine

import (
	"context"
	"sync"
	"time"
)

// Default progress pacing.
const (
	DefaultProgressInterval = 100 * time.Millisecond
	DefaultBackoff          = 25 * time.Millisecond
)

// Report is one progress update. Reports are never persisted.
type Report struct {
	PercentDone   int    `yaml:"percent_done"`
	Message       string `yaml:"message"`
	Indeterminate bool   `yaml:"indeterminate"`
	CancelEnabled bool   `yaml:"cancel_enabled"`
	IsFinal       bool   `yaml:"is_final"`
}

// Sink receives progress reports. Implementations must not block for long;
// they are called on the worker goroutine.
type Sink interface {
	Report(Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Report)

// Report calls f(r).
func (f SinkFunc) Report(r Report) { f(r) }

type nopSink struct{}

func (nopSink) Report(Report) {}

// Throttle gates progress emission to at most one report per interval.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle returns a throttle with the given minimum interval. A zero or
// negative interval lets every report through.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// ShouldEmit reports whether a report may be emitted at now, and if so
// records now as the last emission.
func (t *Throttle) ShouldEmit(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Percent returns floor(100*processed/total) clamped to [0, 100]. An empty
// workload is complete.
func Percent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	if processed <= 0 {
		return 0
	}
	if processed >= total {
		return 100
	}
	return int(int64(processed) * 100 / int64(total))
}

// ProgressOptions paces a Progress.
type ProgressOptions struct {
	Interval time.Duration
	Backoff  time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultProgressOptions returns the standard 100ms interval and 25ms
// backoff.
func DefaultProgressOptions() ProgressOptions {
	return ProgressOptions{Interval: DefaultProgressInterval, Backoff: DefaultBackoff}
}

// Progress tracks one run's progress and forwards throttled reports to a
// sink. Percentages never decrease.
type Progress struct {
	sink     Sink
	throttle *Throttle
	backoff  time.Duration
	now      func() time.Time
	total    int
	last     int
	final    bool
}

// NewProgress returns a tracker for total items.
func NewProgress(sink Sink, total int, opts ProgressOptions) *Progress {
	if sink == nil {
		sink = nopSink{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Progress{
		sink:     sink,
		throttle: NewThrottle(opts.Interval),
		backoff:  opts.Backoff,
		now:      now,
		total:    total,
	}
}

// Step records that processed items are done. When the throttle allows, a
// report is emitted and the caller sleeps the backoff so the consumer can
// render; the sleep ends early if ctx is cancelled. Step returns whether a
// report was emitted.
func (p *Progress) Step(ctx context.Context, processed int, message string) bool {
	if p.final {
		return false
	}
	pct := Percent(processed, p.total)
	if pct < p.last {
		pct = p.last
	}
	p.last = pct

	if !p.throttle.ShouldEmit(p.now()) {
		return false
	}
	p.sink.Report(Report{
		PercentDone:   pct,
		Message:       message,
		CancelEnabled: true,
	})
	sleepContext(ctx, p.backoff)
	return true
}

// Indeterminate emits an unthrottled report for a phase without measurable
// progress. Cancellation is disabled for its duration.
func (p *Progress) Indeterminate(message string) {
	if p.final {
		return
	}
	p.sink.Report(Report{
		PercentDone:   p.last,
		Message:       message,
		Indeterminate: true,
	})
}

// Final emits the closing {100, IsFinal} report. It is never throttled and
// only the first call has an effect.
func (p *Progress) Final(message string) {
	if p.final {
		return
	}
	p.final = true
	p.last = 100
	p.sink.Report(Report{
		PercentDone: 100,
		Message:     message,
		IsFinal:     true,
	})
}

// Last returns the most recent percentage.
func (p *Progress) Last() int {
	return p.last
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dbsmedya/imagebatch/internal/engine"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 16
	labelWidth       = 48
	valueWidth       = 24
	maxFeedbackLines = 20
)

var printer = message.NewPrinter(language.English)

// countf formats with thousands separators.
func countf(format string, args ...interface{}) string {
	return printer.Sprintf(format, args...)
}

func printStatus(w io.Writer, label string, kind statusKind, msg string) {
	status := "[" + statusKindLabel(kind) + "]"
	if msg != "" {
		status += " " + msg
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	fmt.Fprintln(w, statusKindColor(kind).Sprint(line))
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) color.Color {
	switch kind {
	case statusOK:
		return color.Green
	case statusWarn:
		return color.Yellow
	case statusError:
		return color.Red
	default:
		return color.Blue
	}
}

// truncate shortens s to width terminal cells.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// renderPreview renders at most limit candidates as a table. limit <= 0
// shows all of them.
func renderPreview(candidates []engine.Candidate, limit int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Item", "Records", "Field", "Current", "New", "Selected"})

	shown := candidates
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, c := range shown {
		mark := ""
		if c.Selected {
			mark = "✓"
		}
		tw.AppendRow(table.Row{
			c.ID,
			truncate(c.Label, labelWidth),
			len(c.RecordIDs),
			c.Field,
			truncate(c.OldValue, valueWidth),
			truncate(c.NewValue, valueWidth),
			mark,
		})
	}

	selected := 0
	for _, c := range candidates {
		if c.Selected {
			selected++
		}
	}
	footer := countf("%d of %d selected", selected, len(candidates))
	if hidden := len(candidates) - len(shown); hidden > 0 {
		footer += countf(", %d not shown", hidden)
	}
	tw.AppendFooter(table.Row{"", footer})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 7, Align: text.AlignCenter},
	})
	return tw.Render()
}

func outcomeColor(res engine.RunResult) color.Color {
	switch res.Outcome() {
	case engine.OutcomeFailed:
		return color.Red
	case engine.OutcomeCancelled:
		return color.Yellow
	}
	if res.ItemsFailed > 0 {
		return color.Yellow
	}
	return color.Green
}

// printSummary writes the end-of-run summary. total is the size of the
// apply-set.
func printSummary(w io.Writer, res engine.RunResult, total int) {
	title := cases.Title(language.English).String(res.Operation)

	fmt.Fprintf(w, "\n=== %s Run ===\n", title)
	fmt.Fprintf(w, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(w, "Result: %s\n", outcomeColor(res).Sprint(res.Message(total)))
	fmt.Fprintf(w, "Items attempted: %s\n", countf("%d of %d", res.ItemsAttempted, total))
	fmt.Fprintf(w, "Succeeded: %s\n", countf("%d", res.ItemsSucceeded))
	fmt.Fprintf(w, "Failed: %s\n", countf("%d", res.ItemsFailed))
	fmt.Fprintf(w, "Committed: %s\n", committedText(res))
	fmt.Fprintf(w, "Duration: %s\n", res.Duration.Round(time.Millisecond))

	if len(res.Feedback) == 0 {
		return
	}
	fmt.Fprintf(w, "\nItems needing attention:\n")
	for i, fb := range res.Feedback {
		if i == maxFeedbackLines {
			fmt.Fprintf(w, "  ... %s more\n", countf("%d", len(res.Feedback)-i))
			break
		}
		fmt.Fprintf(w, "  - #%d [%s] records %s: %s\n", fb.CandidateID, fb.Status, joinIDs(fb.RecordIDs), fb.Message)
	}
}

func committedText(res engine.RunResult) string {
	if !res.Committed {
		return "no"
	}
	return countf("yes (%d mutations)", res.MutationsCommitted)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

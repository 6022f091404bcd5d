// Package ambiguous finds records whose dates could have day and month
// transposed (day of month 12 or less) and swaps them on request.
package ambiguous

import (
	"time"

	"github.com/dbsmedya/imagebatch/internal/types"
)

const monthsInYear = 12

// DatePortionLayout renders the date part shown in previews.
const DatePortionLayout = "2006-01-02"

// Range is a run of consecutive records sharing one calendar date whose
// first record is ambiguous. SwapDates mirrors the operator's choice.
type Range struct {
	StartIndex int  `yaml:"start_index"`
	EndIndex   int  `yaml:"end_index"`
	Count      int  `yaml:"count"`
	SwapDates  bool `yaml:"swap_dates"`
}

// IsAmbiguous reports whether the record's date could be read either way.
// Unparsable dates are never ambiguous.
func IsAmbiguous(r types.Record) bool {
	return r.DateValid && r.Time.Day() <= monthsInYear
}

// FindNextAmbiguous returns the first index at or after start holding an
// ambiguous date, or -1.
func FindNextAmbiguous(records []types.Record, start int) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(records); i++ {
		if IsAmbiguous(records[i]) {
			return i
		}
	}
	return -1
}

// LastInSameDay returns the last index of the run starting at start whose
// records share start's calendar date, and the run length. An out of range
// start gives (-1, 0).
func LastInSameDay(records []types.Record, start int) (end, count int) {
	if start < 0 || start >= len(records) {
		return -1, 0
	}

	want := records[start]
	end, count = start, 1
	for i := start + 1; i < len(records); i++ {
		r := records[i]
		if !want.DateValid || !r.DateValid || !types.SameDate(want.Time, r.Time) {
			break
		}
		end = i
		count++
	}
	return end, count
}

// FindRanges partitions the ambiguous records into ordered, disjoint ranges.
func FindRanges(records []types.Record) []Range {
	var ranges []Range
	start := FindNextAmbiguous(records, 0)
	for start != -1 {
		end, count := LastInSameDay(records, start)
		ranges = append(ranges, Range{StartIndex: start, EndIndex: end, Count: count})
		start = FindNextAmbiguous(records, end+1)
	}
	return ranges
}

// SwapDayMonth exchanges day and month, keeping the year and time of day.
// It fails when the day cannot be a month.
func SwapDayMonth(t time.Time) (time.Time, bool) {
	day := t.Day()
	if day > monthsInYear {
		return t, false
	}
	swapped := time.Date(t.Year(), time.Month(day), int(t.Month()),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return swapped, true
}

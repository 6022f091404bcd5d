// Package types contains the record and mutation types shared by the store,
// the engine and the operations.
package types

import (
	"path/filepath"
	"strings"
	"time"
)

// DateTimeLayout is the on-disk format of the date_time column.
const DateTimeLayout = "2006-01-02 15:04:05"

// Core column names of the file table. Every other column is exposed
// through Record.Fields.
const (
	ColumnID           = "id"
	ColumnRelativePath = "relative_path"
	ColumnFile         = "file"
	ColumnDateTime     = "date_time"
	ColumnDeleteFlag   = "delete_flag"
)

// Flag values as stored in the database.
const (
	FlagTrue  = "true"
	FlagFalse = "false"
)

// alternate layouts accepted when reading date_time values written by
// other tools.
var dateTimeLayouts = []string{
	DateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02",
}

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".avi": {},
	".mov": {},
	".asf": {},
	".mkv": {},
	".wmv": {},
}

// Record is a read-only snapshot of one row of the file table.
type Record struct {
	ID           int64
	Index        int // position in the ordered sequence handed to a scan
	RelativePath string
	File         string
	DateTime     string // raw column value
	Time         time.Time
	DateValid    bool
	DeleteFlag   bool
	Fields       map[string]string
}

// NewRecord builds a snapshot, parsing the raw date/time.
func NewRecord(id int64, relativePath, file, dateTime string) Record {
	t, ok := ParseDateTime(dateTime)
	return Record{
		ID:           id,
		RelativePath: relativePath,
		File:         file,
		DateTime:     dateTime,
		Time:         t,
		DateValid:    ok,
		Fields:       map[string]string{},
	}
}

// Path joins the record's location under root.
func (r Record) Path(root string) string {
	return filepath.Join(root, filepath.FromSlash(r.RelativePath), r.File)
}

// DisplayPath is the slash-separated path relative to the image root.
func (r Record) DisplayPath() string {
	if r.RelativePath == "" {
		return r.File
	}
	return strings.TrimSuffix(filepath.ToSlash(r.RelativePath), "/") + "/" + r.File
}

// IsVideo reports whether the file is a video by extension.
func (r Record) IsVideo() bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(r.File))]
	return ok
}

// Field returns a non-core column value, or "" if absent.
func (r Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// ParseDateTime parses a date_time column value. The second result is false
// for anything unparsable.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDateTime renders t in DateTimeLayout.
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// SameDate reports whether a and b fall on the same calendar day, ignoring
// the time of day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Reindex sets Index to each record's position in the slice.
func Reindex(records []Record) {
	for i := range records {
		records[i].Index = i
	}
}

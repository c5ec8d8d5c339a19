// Package sheet reads binary workbooks into normalized row records.
package sheet

import (
	"strconv"
	"strings"
	"time"
)

// Record is one normalized spreadsheet row: column name → value plus the
// originating 1-indexed sheet row for error attribution. Values are one of
// string, float64, bool, or time.Time (a date normalized to UTC midnight).
// Blank cells are absent from Fields entirely.
type Record struct {
	Row    int
	Fields map[string]any
}

// Value returns the raw value for a column and whether it was present.
func (r Record) Value(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// IsBlank reports whether a column is absent or holds only whitespace.
func (r Record) IsBlank(name string) bool {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Text returns the column as a trimmed string. Numbers and bools are
// formatted; dates use ISO 8601.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return "", false
	}
	switch tv := v.(type) {
	case string:
		return strings.TrimSpace(tv), true
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(tv), true
	case time.Time:
		return tv.Format("2006-01-02"), true
	default:
		return "", false
	}
}

// Float returns the column coerced to a number. Strings are parsed; dates
// and bools never coerce.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	switch tv := v.(type) {
	case float64:
		return tv, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Date returns the column as a normalized date. Only values the reader
// already normalized count; strings are never coerced here.
func (r Record) Date(name string) (time.Time, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return time.Time{}, false
	}
	t, isTime := v.(time.Time)
	return t, isTime
}

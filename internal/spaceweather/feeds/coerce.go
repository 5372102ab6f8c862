package feeds

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NOAA products mix "2006-01-02 15:04:05.000" and ISO-style stamps; all are UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
}

func parseNOAATime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// toFloat coerces a decoded JSON value (string, number, or null) to a finite float.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

func ptr[T any](v T) *T {
	return &v
}

// rowTable is a NOAA "array of rows" product whose first row names the columns.
type rowTable struct {
	columns map[string]int
	rows    [][]any
}

func newRowTable(raw [][]any) rowTable {
	t := rowTable{columns: map[string]int{}}
	if len(raw) == 0 {
		return t
	}

	header := raw[0]
	if !isHeader(header) {
		t.rows = raw
		return t
	}
	for i, name := range header {
		t.columns[strings.ToLower(strings.TrimSpace(toString(name)))] = i
	}
	t.rows = raw[1:]
	return t
}

// isHeader reports whether row looks like column names rather than data.
func isHeader(row []any) bool {
	if len(row) == 0 {
		return false
	}
	first, ok := row[0].(string)
	if !ok {
		return false
	}
	_, isTime := parseNOAATime(first)
	return !isTime
}

// col returns the index of the first named column present, else fallback.
func (t rowTable) col(fallback int, names ...string) int {
	for _, n := range names {
		if i, ok := t.columns[n]; ok {
			return i
		}
	}
	return fallback
}

func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

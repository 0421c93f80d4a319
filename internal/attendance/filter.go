package attendance

import (
	"fmt"
	"math"
	"strings"
)

// Keep reports whether a parsed row is attendance data rather than a
// footer, subtotal or undated line.
func Keep(row Row) bool {
	d := row.Get(FieldAttendanceDate)
	if !truthy(d) {
		return false
	}
	text := fmt.Sprint(d)
	for _, keyword := range SkipKeywords {
		if strings.Contains(text, keyword) {
			return false
		}
	}
	_, ok := ParseDate(d)
	return ok
}

// Filter drops the rows Keep rejects and preserves the order of the rest.
func Filter(rows []Row) []Row {
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if Keep(row) {
			kept = append(kept, row)
		}
	}
	return kept
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

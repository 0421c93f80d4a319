package attendance

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	// SerialEpochOffset is the spreadsheet serial of 1970-01-01.
	SerialEpochOffset = 25569
	MillisPerDay      = 86_400_000

	// maxDateMillis bounds the representable date range on either side of the epoch.
	maxDateMillis = 8.64e15
)

// weekdaySuffix matches a trailing parenthesised weekday such as "(五)" or "（Fri）".
var weekdaySuffix = regexp.MustCompile(`\s*[(（][^()（）]*[)）]\s*$`)

var dateLayouts = []string{
	"2006/01/02",
	"2006/1/2",
	"2006-01-02",
	"2006-1-2",
	"2006.01.02",
	"2006.1.2",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2 15:04:05",
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006.01.02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Mon Jan 02 2006",
	"Mon Jan 02 2006 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// TimeToMinutes converts a raw cell value to minutes since midnight. The
// boolean is false when the value carries no usable time.
func TimeToMinutes(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case time.Time:
		return val.Hour()*60 + val.Minute(), true
	case string:
		if val == "" {
			return 0, false
		}
		clean := strings.TrimSpace(val)
		if clean == NotClockedIn {
			return 0, false
		}
		parts := strings.Split(clean, ":")
		if len(parts) < 2 {
			return 0, false
		}
		h, okH := leadingInt(parts[0])
		m, okM := leadingInt(parts[1])
		if !okH || !okM {
			return 0, false
		}
		return h*60 + m, true
	}
	if f, ok := toFloat(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		// Half rounds toward positive infinity; the modulo folds 24:00 back to 00:00.
		return int(math.Floor(f*MinutesPerDay+0.5)) % MinutesPerDay, true
	}
	return 0, false
}

// ParseDate resolves a raw attendance-date cell. The boolean is the validity
// marker and must be checked before the time is used.
func ParseDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case nil:
		return time.Time{}, false
	case string:
		return parseDateString(val)
	}
	if f, ok := toFloat(v); ok {
		return serialToTime(f)
	}
	return parseDateString(fmt.Sprint(v))
}

// SerialToTime converts a spreadsheet serial (days since 1899-12-30, with the
// time of day as the fraction) to a UTC time.
func SerialToTime(serial float64) time.Time {
	t, _ := serialToTime(serial)
	return t
}

func serialToTime(serial float64) (time.Time, bool) {
	ms := math.Floor((serial-SerialEpochOffset)*MillisPerDay + 0.5)
	if math.IsNaN(ms) || math.Abs(ms) > maxDateMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

func parseDateString(raw string) (time.Time, bool) {
	value := strings.TrimSpace(weekdaySuffix.ReplaceAllString(raw, ""))
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// IsEmpty reports whether a cell is absent or only whitespace.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

// leadingInt parses an optional sign and the leading run of digits, ignoring
// whatever follows, so "09 " and "30秒" both resolve.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

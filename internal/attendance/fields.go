package attendance

import "sort"

// Field is a column name from the attendance export. The vocabulary below is
// fixed; any other column travels through the engine untouched.
type Field string

const (
	FieldAttendanceDate    Field = "出勤日期"
	FieldCheckIn           Field = "實際上班時間"
	FieldCheckOut          Field = "實際下班時間"
	FieldLeaveStart        Field = "假勤起始時間"
	FieldLeaveEnd          Field = "假勤結束時間"
	FieldScheduledHours    Field = "應出勤時數(時:分)"
	FieldLateMinutes       Field = "遲到(分鐘)"
	FieldEarlyLeaveMinutes Field = "早退(分鐘)"
	FieldChanged           Field = "異動"
	FieldFriday            Field = "星期五"
)

const (
	// NotClockedIn is written into a punch field that has neither a punch nor a leave record.
	NotClockedIn = "(未打卡)"
	// Marker flags a Friday row or a row the engine changed.
	Marker = "V"
)

const (
	MinutesPerDay              = 1440
	DefaultLateThreshold       = 540  // 09:00
	ShortScheduleLateThreshold = 600  // 10:00
	ShortScheduleMinutes       = 420  // 07:00 scheduled
	EarlyLeaveThreshold        = 1080 // 18:00
)

// SkipKeywords mark subtotal, total and count lines at the bottom of an export.
var SkipKeywords = []string{"小計", "合計", "總計", "次數", "遲到早退"}

// Row is one physical spreadsheet row keyed by header name.
type Row map[string]any

func (r Row) Get(f Field) any {
	return r[string(f)]
}

func (r Row) Set(f Field, v any) {
	r[string(f)] = v
}

func (r Row) Clone() Row {
	out := make(Row, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldSet records which fields the engine wrote on a row.
type FieldSet map[Field]struct{}

func (s FieldSet) Add(f Field) {
	s[f] = struct{}{}
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// HasColumn reports whether the named spreadsheet column was modified.
func (s FieldSet) HasColumn(name string) bool {
	return s.Has(Field(name))
}

func (s FieldSet) Len() int {
	return len(s)
}

func (s FieldSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

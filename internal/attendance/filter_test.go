package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeep(t *testing.T) {
	tests := []struct {
		name string
		date any
		want bool
	}{
		{name: "missing", date: nil, want: false},
		{name: "empty", date: "", want: false},
		{name: "zero serial", date: 0.0, want: false},
		{name: "subtotal", date: "小計", want: false},
		{name: "total", date: "合計：", want: false},
		{name: "grand total", date: "總計", want: false},
		{name: "count", date: "遲到次數", want: false},
		{name: "summary", date: "遲到早退統計", want: false},
		{name: "unparsable", date: "員工：王小明", want: false},
		{name: "slash date", date: "2024/01/05", want: true},
		{name: "weekday suffix", date: "2024/01/05 (五)", want: true},
		{name: "weekday suffix no space", date: "2024/01/05(五)", want: true},
		{name: "short date with clock", date: "2024/1/5 8:30", want: true},
		{name: "month name first", date: "Jan 5 2024", want: true},
		{name: "day first month name", date: "5 January 2024", want: true},
		{name: "dashed month first", date: "01-05-2024", want: true},
		{name: "serial", date: 45296.0, want: true},
		{name: "time value", date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Row{"員工姓名": "王小明"}
			if tt.date != nil {
				row.Set(FieldAttendanceDate, tt.date)
			}
			assert.Equal(t, tt.want, Keep(row))
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	rows := []Row{
		{string(FieldAttendanceDate): "2024/01/04", "id": 1},
		{string(FieldAttendanceDate): "小計", "id": 2},
		{string(FieldAttendanceDate): "2024/01/05", "id": 3},
		{"id": 4},
	}
	kept := Filter(rows)
	if assert.Len(t, kept, 2) {
		assert.Equal(t, 1, kept[0]["id"])
		assert.Equal(t, 3, kept[1]["id"])
	}
}

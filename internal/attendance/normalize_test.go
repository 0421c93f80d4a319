package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int
		wantOK bool
	}{
		{name: "nil", in: nil},
		{name: "empty string", in: ""},
		{name: "whitespace", in: "   "},
		{name: "not clocked in", in: NotClockedIn},
		{name: "not clocked in padded", in: " " + NotClockedIn + " "},
		{name: "hh:mm", in: "10:15", want: 615, wantOK: true},
		{name: "hh:mm:ss", in: "09:15:30", want: 555, wantOK: true},
		{name: "leading integer parse", in: " 9 :05", want: 545, wantOK: true},
		{name: "no bounds check", in: "25:99", want: 1599, wantOK: true},
		{name: "bad hour", in: "ab:10"},
		{name: "bad minute", in: "10:xx"},
		{name: "no colon", in: "1015"},
		{name: "half day serial", in: 0.5, want: 720, wantOK: true},
		{name: "serial rounds to midnight", in: 0.999999, want: 0, wantOK: true},
		{name: "whole day serial", in: 1.0, want: 0, wantOK: true},
		{name: "datetime serial", in: 45296.375, want: 540, wantOK: true},
		{name: "integer", in: 0, want: 0, wantOK: true},
		{name: "time value", in: time.Date(2024, 1, 5, 9, 30, 45, 0, time.UTC), want: 570, wantOK: true},
		{name: "bool", in: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TimeToMinutes(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("time passes through", func(t *testing.T) {
		in := time.Date(2024, 1, 5, 8, 0, 0, 0, time.Local)
		got, ok := ParseDate(in)
		require.True(t, ok)
		assert.True(t, got.Equal(in))
	})

	t.Run("serial uses the 1970 epoch offset", func(t *testing.T) {
		got, ok := ParseDate(45296.0)
		require.True(t, ok)
		assert.True(t, got.Equal(friday), "got %s", got)

		got, ok = ParseDate(45296.5)
		require.True(t, ok)
		assert.Equal(t, 12, got.Hour())
	})

	t.Run("serial epoch", func(t *testing.T) {
		got, ok := ParseDate(float64(SerialEpochOffset))
		require.True(t, ok)
		assert.Equal(t, int64(0), got.Unix())
	})

	for _, s := range []string{
		"2024/01/05", "2024/1/5", "2024-01-05", "2024.01.05", "2024/01/05 08:30:00",
		"2024/01/05 (五)", "2024/01/05(五)", "2024/01/05（五）", "2024/1/5 8:30",
		"Jan 5 2024", "5 January 2024", "01-05-2024", "Fri Jan 05 2024",
	} {
		t.Run("string "+s, func(t *testing.T) {
			got, ok := ParseDate(s)
			require.True(t, ok)
			assert.Equal(t, time.Friday, got.Weekday())
			assert.Equal(t, 5, got.Day())
		})
	}

	for _, s := range []string{"", "  ", "小計", "not a date", "45296", "(五)"} {
		t.Run("invalid "+s, func(t *testing.T) {
			_, ok := ParseDate(s)
			assert.False(t, ok)
		})
	}

	t.Run("nil is invalid", func(t *testing.T) {
		_, ok := ParseDate(nil)
		assert.False(t, ok)
	})
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty(" \t "))
	assert.True(t, IsEmpty("　"))
	assert.False(t, IsEmpty("09:00"))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty(time.Time{}))
}

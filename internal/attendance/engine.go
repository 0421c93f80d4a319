package attendance

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result pairs an annotated row with the fields the engine wrote on it.
type Result struct {
	Row      Row
	Modified FieldSet
}

// Changed reports whether the anomaly marker is set.
func (r Result) Changed() bool {
	return r.Row.Get(FieldChanged) == Marker
}

// LateThreshold returns the minute after which a check-in counts as late.
func LateThreshold(scheduled any) int {
	if m, ok := TimeToMinutes(scheduled); ok && m == ShortScheduleMinutes {
		return ShortScheduleLateThreshold
	}
	return DefaultLateThreshold
}

// IsFriday reports whether the attendance date parses and falls on a Friday.
func IsFriday(row Row) bool {
	d, ok := ParseDate(row.Get(FieldAttendanceDate))
	return ok && d.Weekday() == time.Friday
}

// ProcessRow applies the Friday punch rules to a copy of row.
func ProcessRow(row Row) Result {
	out := row.Clone()
	modified := FieldSet{}

	if !IsFriday(row) {
		out.Set(FieldFriday, "")
		out.Set(FieldChanged, "")
		return Result{Row: out, Modified: modified}
	}
	out.Set(FieldFriday, Marker)

	checkIn := row.Get(FieldCheckIn)
	checkOut := row.Get(FieldCheckOut)
	leaveStart := row.Get(FieldLeaveStart)
	leaveEnd := row.Get(FieldLeaveEnd)

	checkInMin, hasCheckIn := TimeToMinutes(checkIn)
	checkOutMin, hasCheckOut := TimeToMinutes(checkOut)
	leaveStartMin, hasLeaveStart := TimeToMinutes(leaveStart)
	threshold := LateThreshold(row.Get(FieldScheduledHours))

	switch {
	case IsEmpty(checkIn) && IsEmpty(leaveStart):
		out.Set(FieldCheckIn, NotClockedIn)
		modified.Add(FieldCheckIn)
	case hasCheckIn && checkInMin > threshold:
		// A leave that started before the punch covers the late arrival.
		if !(hasLeaveStart && leaveStartMin < checkInMin) {
			out.Set(FieldLateMinutes, checkInMin-threshold)
			modified.Add(FieldLateMinutes)
		}
	}

	switch {
	case IsEmpty(checkOut) && IsEmpty(leaveEnd):
		out.Set(FieldCheckOut, NotClockedIn)
		modified.Add(FieldCheckOut)
	case hasCheckOut && checkOutMin < EarlyLeaveThreshold:
		// Guarded by leave start, not leave end.
		if !(hasLeaveStart && leaveStartMin < checkOutMin) {
			out.Set(FieldEarlyLeaveMinutes, EarlyLeaveThreshold-checkOutMin)
			modified.Add(FieldEarlyLeaveMinutes)
		}
	}

	if modified.Len() > 0 {
		out.Set(FieldChanged, Marker)
	} else {
		out.Set(FieldChanged, "")
	}
	return Result{Row: out, Modified: modified}
}

// Process runs ProcessRow over rows in order.
func Process(rows []Row) []Result {
	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = ProcessRow(row)
	}
	return results
}

// ProcessConcurrent is Process spread over a bounded number of goroutines.
// Output order matches input order. workers <= 0 uses one per CPU.
func ProcessConcurrent(ctx context.Context, rows []Row, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make([]Result, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rows {
		if err := gctx.Err(); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = ProcessRow(rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

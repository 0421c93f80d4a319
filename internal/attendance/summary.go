package attendance

// Summary counts what the engine did across an upload.
type Summary struct {
	Rows           int `json:"rows"`
	FridayRows     int `json:"fridayRows"`
	ChangedRows    int `json:"changedRows"`
	LateRows       int `json:"lateRows"`
	EarlyLeaveRows int `json:"earlyLeaveRows"`
	MissingPunches int `json:"missingPunches"`
}

func Summarize(results []Result) Summary {
	s := Summary{Rows: len(results)}
	for _, r := range results {
		if r.Row.Get(FieldFriday) == Marker {
			s.FridayRows++
		}
		if r.Changed() {
			s.ChangedRows++
		}
		if r.Modified.Has(FieldLateMinutes) {
			s.LateRows++
		}
		if r.Modified.Has(FieldEarlyLeaveMinutes) {
			s.EarlyLeaveRows++
		}
		if r.Modified.Has(FieldCheckIn) {
			s.MissingPunches++
		}
		if r.Modified.Has(FieldCheckOut) {
			s.MissingPunches++
		}
	}
	return s
}

package marketdata

import "time"

// RecordQuery selects stored records of one zone whose interval starts in [From, To).
// An empty Zone matches every zone; Limit <= 0 means no limit.
type RecordQuery struct {
	Zone  string
	From  time.Time
	To    time.Time
	Limit int
}

// Matches reports whether rec satisfies the query.
func (q RecordQuery) Matches(rec Record) bool {
	if rec == nil {
		return false
	}
	if q.Zone != "" && rec.Zone() != q.Zone {
		return false
	}
	start := rec.Start()
	if !q.From.IsZero() && start.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !start.Before(q.To) {
		return false
	}
	return true
}

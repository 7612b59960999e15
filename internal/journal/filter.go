package journal

import "time"

// FilterOption narrows the entries selected by Filter and Count.
// Options compose as a logical AND.
type FilterOption func(*query)

type query struct {
	label    string
	hasLabel bool
	since    int64
	hasSince bool
}

func (q query) matches(ts int64, label string) bool {
	if q.hasLabel && label != q.label {
		return false
	}
	if q.hasSince && ts < q.since {
		return false
	}
	return true
}

// Label keeps entries whose label equals l exactly.
func Label(l string) FilterOption {
	return func(q *query) {
		q.label = l
		q.hasLabel = true
	}
}

// Since keeps entries with timestamp >= ts (milliseconds).
func Since(ts int64) FilterOption {
	return func(q *query) {
		q.since = ts
		q.hasSince = true
	}
}

// SinceTime is Since for a time.Time.
func SinceTime(t time.Time) FilterOption {
	return Since(t.UnixMilli())
}

// internal/journal/journal.go
package journal

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Entry is a single labelled instant in a Journal.
type Entry struct {
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

// Time returns the entry timestamp as a time.Time.
func (e Entry) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// Journal is an ordered mapping from millisecond timestamps to labels.
//
// Entries iterate in insertion order, but every read operation (Filter,
// Count, Trim, Split) is defined in terms of the numeric key. Writing a
// timestamp that already exists overwrites its label in place.
//
// A Journal is not safe for concurrent use; the actions recorder provides
// the locking for shared access.
type Journal struct {
	labels map[int64]string
	order  []int64
	now    func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithNow sets the time source used when a timestamp is omitted.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// New creates an empty journal.
func New(opts ...Option) *Journal {
	j := &Journal{
		labels: make(map[int64]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// FromMap builds a journal from a timestamp to label mapping. Map order is
// undefined in Go, so entries are inserted in ascending timestamp order.
func FromMap(m map[int64]string, opts ...Option) *Journal {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	j := New(opts...)
	for _, k := range keys {
		j.set(k, m[k])
	}
	return j
}

// FromRecord decodes the persisted form, whose keys are base-10 timestamps.
func FromRecord(rec map[string]string, opts ...Option) (*Journal, error) {
	m := make(map[int64]string, len(rec))
	for k, v := range rec {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("journal: invalid timestamp key %q: %w", k, err)
		}
		m[ts] = v
	}
	return FromMap(m, opts...), nil
}

// ToRecord encodes the journal into its persisted form.
func (j *Journal) ToRecord() map[string]string {
	rec := make(map[string]string, len(j.labels))
	for ts, label := range j.labels {
		rec[strconv.FormatInt(ts, 10)] = label
	}
	return rec
}

func (j *Journal) set(ts int64, label string) {
	if _, exists := j.labels[ts]; !exists {
		j.order = append(j.order, ts)
	}
	j.labels[ts] = label
}

// derive creates an empty journal sharing the receiver's time source.
func (j *Journal) derive() *Journal {
	return New(WithNow(j.now))
}

func (j *Journal) nowMillis() int64 {
	return j.now().UnixMilli()
}

// Add records label at ts, or at the current time when ts is omitted.
// It returns the timestamp used so callers can correlate the entry.
func (j *Journal) Add(label string, ts ...int64) int64 {
	var at int64
	if len(ts) > 0 {
		at = ts[0]
	} else {
		at = j.nowMillis()
	}
	j.set(at, label)
	return at
}

// Len reports the number of entries.
func (j *Journal) Len() int { return len(j.labels) }

// Get returns the label recorded at ts.
func (j *Journal) Get(ts int64) (string, bool) {
	label, ok := j.labels[ts]
	return label, ok
}

// Entries returns a copy of all entries in insertion order.
func (j *Journal) Entries() []Entry {
	out := make([]Entry, 0, len(j.order))
	for _, ts := range j.order {
		out = append(out, Entry{Timestamp: ts, Label: j.labels[ts]})
	}
	return out
}

// Sorted returns a copy of all entries in ascending timestamp order.
func (j *Journal) Sorted() []Entry {
	out := j.Entries()
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp < out[b].Timestamp })
	return out
}

// Map returns a copy of the timestamp to label mapping.
func (j *Journal) Map() map[int64]string {
	out := make(map[int64]string, len(j.labels))
	for k, v := range j.labels {
		out[k] = v
	}
	return out
}

// Filter returns a new journal holding only entries that satisfy every
// option. With no options the result is an equal but independent copy.
func (j *Journal) Filter(opts ...FilterOption) *Journal {
	var q query
	for _, opt := range opts {
		opt(&q)
	}

	out := j.derive()
	for _, ts := range j.order {
		label := j.labels[ts]
		if q.matches(ts, label) {
			out.set(ts, label)
		}
	}
	return out
}

// Count is equivalent to Filter(opts...).Len() without the allocation.
func (j *Journal) Count(opts ...FilterOption) int {
	var q query
	for _, opt := range opts {
		opt(&q)
	}

	n := 0
	for ts, label := range j.labels {
		if q.matches(ts, label) {
			n++
		}
	}
	return n
}

// Trim removes, in place, every entry strictly older than before (default:
// now) and returns how many were removed.
func (j *Journal) Trim(before ...int64) int {
	cutoff := j.nowMillis()
	if len(before) > 0 {
		cutoff = before[0]
	}

	kept := j.order[:0]
	removed := 0
	for _, ts := range j.order {
		if ts < cutoff {
			delete(j.labels, ts)
			removed++
			continue
		}
		kept = append(kept, ts)
	}
	j.order = kept
	return removed
}

// Split partitions the journal at ts into two new journals. before holds
// keys strictly less than ts, after holds the rest. The receiver is left
// unchanged and every entry lands on exactly one side.
func (j *Journal) Split(ts int64) (before, after *Journal) {
	before, after = j.derive(), j.derive()
	for _, k := range j.order {
		if k < ts {
			before.set(k, j.labels[k])
		} else {
			after.set(k, j.labels[k])
		}
	}
	return before, after
}

// Labels returns how many times each label occurs.
func (j *Journal) Labels() map[string]int {
	out := make(map[string]int)
	for _, label := range j.labels {
		out[label]++
	}
	return out
}

// Bounds returns the oldest and newest timestamps. ok is false when empty.
func (j *Journal) Bounds() (oldest, newest int64, ok bool) {
	for i, ts := range j.order {
		if i == 0 || ts < oldest {
			oldest = ts
		}
		if i == 0 || ts > newest {
			newest = ts
		}
	}
	return oldest, newest, len(j.order) > 0
}

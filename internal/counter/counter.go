// Package counter keeps named integer tallies, used for run summaries.
package counter

import (
	"errors"
	"sort"
)

// ErrEmpty is returned by Max and Min on a counter with no keys.
var ErrEmpty = errors.New("counter: empty")

// Entry is one key and its tally.
type Entry struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Counter maps keys to tallies, remembering the order keys were first seen.
// It is not safe for concurrent use.
type Counter struct {
	values map[string]int
	order  []string
}

// New returns a counter with each of keys present at zero.
func New(keys ...string) *Counter {
	c := &Counter{values: make(map[string]int, len(keys))}
	for _, k := range keys {
		c.Reset(k)
	}
	return c
}

func (c *Counter) touch(key string) {
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
		c.values[key] = 0
	}
}

// Add adds n to key, creating it if needed, and returns the new tally.
func (c *Counter) Add(key string, n int) int {
	c.touch(key)
	c.values[key] += n
	return c.values[key]
}

// Subtract removes n from key.
func (c *Counter) Subtract(key string, n int) int {
	return c.Add(key, -n)
}

// Increment adds n to each of keys, or to every key when none are given.
// It returns the number of entries changed.
func (c *Counter) Increment(n int, keys ...string) int {
	if len(keys) == 0 {
		keys = c.Keys()
	}
	for _, k := range keys {
		c.Add(k, n)
	}
	return len(keys)
}

// Decrement is Increment with -n.
func (c *Counter) Decrement(n int, keys ...string) int {
	return c.Increment(-n, keys...)
}

// Get returns the tally for key, zero when unknown.
func (c *Counter) Get(key string) int { return c.values[key] }

// Len reports the number of keys.
func (c *Counter) Len() int { return len(c.order) }

// Keys returns keys in first-seen order.
func (c *Counter) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Total sums the given keys, or every key when none are given.
func (c *Counter) Total(keys ...string) int {
	if len(keys) == 0 {
		keys = c.order
	}
	total := 0
	for _, k := range keys {
		total += c.values[k]
	}
	return total
}

// Reset sets key to zero, creating it if needed.
func (c *Counter) Reset(key string) {
	c.touch(key)
	c.values[key] = 0
}

// Max returns the highest entry. Ties go to the key seen first.
func (c *Counter) Max() (Entry, error) {
	return c.pick(func(a, b int) bool { return a > b })
}

// Min returns the lowest entry. Ties go to the key seen first.
func (c *Counter) Min() (Entry, error) {
	return c.pick(func(a, b int) bool { return a < b })
}

func (c *Counter) pick(better func(a, b int) bool) (Entry, error) {
	if len(c.order) == 0 {
		return Entry{}, ErrEmpty
	}
	best := Entry{Key: c.order[0], Value: c.values[c.order[0]]}
	for _, k := range c.order[1:] {
		if v := c.values[k]; better(v, best.Value) {
			best = Entry{Key: k, Value: v}
		}
	}
	return best, nil
}

// Entries returns every entry in first-seen order.
func (c *Counter) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Entry{Key: k, Value: c.values[k]})
	}
	return out
}

// Sort returns entries ordered highest first. A positive limit keeps that
// many from the top; a negative limit orders lowest first and keeps |limit|.
// Zero returns everything.
func (c *Counter) Sort(limit int) []Entry {
	out := c.Entries()
	if limit < 0 {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
		limit = -limit
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Map returns a copy of the tallies.
func (c *Counter) Map() map[string]int {
	out := make(map[string]int, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

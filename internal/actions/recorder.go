// Package actions records every automated action in a persisted journal.
package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/config"
	"github.com/xkilldash9x/cadence/internal/journal"
	"github.com/xkilldash9x/cadence/internal/store"
	"go.uber.org/zap"
)

// Quota caps how many times Action may appear in the trailing Window.
type Quota struct {
	Action string
	Limit  int
	Window time.Duration
}

// QuotasFromConfig converts configured quotas.
func QuotasFromConfig(cfgs []config.QuotaConfig) []Quota {
	out := make([]Quota, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Quota{Action: c.Action, Limit: c.Limit, Window: c.Window})
	}
	return out
}

// Recorder owns the action journal and keeps it in sync with the store.
// Every method is safe for concurrent use; Log is the single write path.
type Recorder struct {
	store store.Store
	clock clock.Clock
	log   *zap.Logger

	mu      sync.Mutex
	journal *journal.Journal
	quotas  map[string]Quota
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source for default timestamps and quota windows.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithLogger sets the recorder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.log = l }
}

// WithQuotas registers quotas, keyed by action.
func WithQuotas(qs ...Quota) Option {
	return func(r *Recorder) {
		for _, q := range qs {
			r.quotas[q.Action] = q
		}
	}
}

// New builds a recorder and loads the persisted journal.
func New(ctx context.Context, s store.Store, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		store:  s,
		clock:  clock.Real{},
		log:    zap.NewNop(),
		quotas: make(map[string]Quota),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("actions")
	r.journal = r.newJournal()

	if _, err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) newJournal() *journal.Journal {
	return journal.New(journal.WithNow(r.clock.Now))
}

func (r *Recorder) nowMillis() int64 {
	return clock.NowMillis(r.clock)
}

// Load replaces the in-memory journal with the persisted one. A missing
// record loads as an empty journal.
func (r *Recorder) Load(ctx context.Context) (*journal.Journal, error) {
	var rec map[string]string
	found, err := r.store.Get(ctx, store.KeyActions, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	j := r.newJournal()
	if found {
		j, err = journal.FromRecord(rec, journal.WithNow(r.clock.Now))
		if err != nil {
			return nil, fmt.Errorf("failed to load actions: %w",
				&store.Error{Op: "load", Key: store.KeyActions, Err: err})
		}
	}

	r.mu.Lock()
	r.journal = j
	r.mu.Unlock()

	r.log.Debug("Loaded action journal", zap.Int("entries", j.Len()))
	return j.Filter(), nil
}

// Save writes the journal to the store before returning.
func (r *Recorder) Save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx)
}

func (r *Recorder) saveLocked(ctx context.Context) error {
	if err := r.store.Set(ctx, store.KeyActions, r.journal.ToRecord()); err != nil {
		return fmt.Errorf("failed to save actions: %w", err)
	}
	return nil
}

// Log records action at ts (default now) and persists the journal. The entry
// stays in memory even when the write fails.
func (r *Recorder) Log(ctx context.Context, action string, ts ...int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.journal.Add(action, ts...)
	if err := r.saveLocked(ctx); err != nil {
		return at, err
	}
	r.log.Debug("Logged action", zap.String("action", action), zap.Int64("timestamp", at))
	return at, nil
}

// Get returns a filtered copy of the journal.
func (r *Recorder) Get(opts ...journal.FilterOption) *journal.Journal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal.Filter(opts...)
}

// Count returns the number of entries matching opts.
func (r *Recorder) Count(opts ...journal.FilterOption) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal.Count(opts...)
}

// Clear keeps only entries at or after before (default now), persists the
// result and returns a copy of it.
func (r *Recorder) Clear(ctx context.Context, before ...int64) (*journal.Journal, error) {
	cutoff := r.nowMillis()
	if len(before) > 0 {
		cutoff = before[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.journal.Filter(journal.Since(cutoff))
	removed := r.journal.Len() - kept.Len()
	if err := r.store.Set(ctx, store.KeyActions, kept.ToRecord()); err != nil {
		return nil, fmt.Errorf("failed to save actions: %w", err)
	}
	r.journal = kept
	r.log.Info("Cleared action history", zap.Int64("cutoff", cutoff), zap.Int("removed", removed))
	return kept.Filter(), nil
}

// Quota returns the quota registered for action.
func (r *Recorder) Quota(action string) (Quota, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotas[action]
	return q, ok
}

// Allow reports whether another q.Action fits in the quota, and how many
// remain in the current window.
func (r *Recorder) Allow(q Quota) (bool, int) {
	since := r.clock.Now().Add(-q.Window)
	used := r.Count(journal.Label(q.Action), journal.SinceTime(since))
	remaining := q.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining > 0, remaining
}

// AllowAction checks the registered quota for action. Actions without a
// quota are always allowed and report -1 remaining.
func (r *Recorder) AllowAction(action string) (bool, int) {
	q, ok := r.Quota(action)
	if !ok {
		return true, -1
	}
	return r.Allow(q)
}

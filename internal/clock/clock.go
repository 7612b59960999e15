// internal/clock/clock.go
package clock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts wall-clock time and context-aware suspension so timed
// components can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the production Clock backed by the runtime timer.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NowMillis returns the clock's current time as Unix milliseconds.
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// Defaults supplies the wait parameters used when a caller does not
// request an explicit delay. The automator's settings satisfy it.
type Defaults interface {
	WaitMs() int
	RandomMs() int
}

// StaticDefaults is a fixed Defaults value.
type StaticDefaults struct {
	Wait   int
	Random int
}

func (s StaticDefaults) WaitMs() int   { return s.Wait }
func (s StaticDefaults) RandomMs() int { return s.Random }

// fallbackWaitMs mirrors the historical default used when no settings exist.
const fallbackWaitMs = 200

// Sleeper produces jittered delays. It is the single suspension primitive
// used by the poller, the gesture sequencer and the automator.
type Sleeper struct {
	clock    Clock
	logger   *zap.Logger
	defaults Defaults

	// rng is not safe for concurrent use, so access goes through mu.
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Sleeper.
type Option func(*Sleeper)

// WithClock overrides the clock (tests use a fake).
func WithClock(c Clock) Option {
	return func(s *Sleeper) { s.clock = c }
}

// WithRand injects a seeded random source for deterministic jitter.
func WithRand(r *rand.Rand) Option {
	return func(s *Sleeper) { s.rng = r }
}

// WithLogger sets the logger used for wait announcements.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sleeper) { s.logger = l }
}

// WithDefaults sets the provider consulted by Wait.
func WithDefaults(d Defaults) Option {
	return func(s *Sleeper) { s.defaults = d }
}

// NewSleeper builds a Sleeper on the real clock unless overridden.
func NewSleeper(opts ...Option) *Sleeper {
	s := &Sleeper{
		clock:  Real{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Clock exposes the underlying clock.
func (s *Sleeper) Clock() Clock { return s.clock }

// SetDefaults swaps the provider consulted by Wait, e.g. after a settings reload.
func (s *Sleeper) SetDefaults(d Defaults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
}

// Jitter returns ms + a uniform random value in [0, jitterMs) as a duration.
func (s *Sleeper) Jitter(ms, jitterMs int) time.Duration {
	total := float64(ms)
	if jitterMs > 0 {
		s.mu.Lock()
		total += s.rng.Float64() * float64(jitterMs)
		s.mu.Unlock()
	}
	if total < 0 {
		total = 0
	}
	return time.Duration(total * float64(time.Millisecond))
}

// Float64 draws from the sleeper's random source. The gesture sequencer
// uses it so one seed controls every random choice in a run.
func (s *Sleeper) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sleep suspends for ms plus up to jitterMs of random extra time. It only
// returns early when ctx is cancelled.
func (s *Sleeper) Sleep(ctx context.Context, ms, jitterMs int) error {
	d := s.Jitter(ms, jitterMs)
	if d >= 100*time.Millisecond {
		// Tenths of a second, truncated, the way the wait is announced to users.
		seconds := float64(d.Milliseconds()/100) / 10
		s.logger.Debug("Waiting", zap.Float64("seconds", seconds))
	}
	return s.clock.Sleep(ctx, d)
}

// Wait sleeps using the current default settings.
func (s *Sleeper) Wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.defaults
	s.mu.Unlock()

	if d == nil {
		return s.Sleep(ctx, fallbackWaitMs, 0)
	}
	return s.Sleep(ctx, d.WaitMs(), d.RandomMs())
}

// Package poll turns "check until true" against an asynchronously changing
// page into a bounded, cancellable step.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/cadence/internal/clock"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout applies when Until is given a non-positive budget.
	DefaultTimeout = 10 * time.Second
	// DefaultInterval is the pause between condition evaluations.
	DefaultInterval = 10 * time.Millisecond
)

// ErrTimeout matches any *TimeoutError via errors.Is.
var ErrTimeout = errors.New("poll: timed out")

// TimeoutError is returned when the budget elapses before the condition
// reports Done.
type TimeoutError struct {
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll: condition never met, waited %d ms (budget %d ms)",
		e.Elapsed.Milliseconds(), e.Budget.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Result is the outcome of one condition evaluation: either still pending or
// done with a value. A done result may carry a zero value.
type Result[T any] struct {
	value T
	done  bool
}

// Pending reports that the condition is not met yet.
func Pending[T any]() Result[T] { return Result[T]{} }

// Done reports success with v.
func Done[T any](v T) Result[T] { return Result[T]{value: v, done: true} }

// IsDone reports whether r is a Done result.
func (r Result[T]) IsDone() bool { return r.done }

// Value returns the carried value; it is the zero value for Pending.
func (r Result[T]) Value() T { return r.value }

// Condition is evaluated repeatedly by Until. A non-nil error aborts the
// loop without retrying.
type Condition[T any] func(ctx context.Context) (Result[T], error)

type options struct {
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

// Option configures a single Until call.
type Option func(*options)

// WithClock sets the clock used for elapsed time and suspension.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithInterval overrides the pause between evaluations.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets a logger for timeout diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Until evaluates cond until it reports Done, returns an error, the budget
// elapses, or ctx is cancelled.
func Until[T any](ctx context.Context, cond Condition[T], timeout time.Duration, opts ...Option) (T, error) {
	o := options{
		clock:    clock.Real{},
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var zero T
	start := o.clock.Now()
	for {
		elapsed := o.clock.Now().Sub(start)
		if elapsed >= timeout {
			o.logger.Debug("Condition never met", zap.Duration("elapsed", elapsed), zap.Duration("budget", timeout))
			return zero, &TimeoutError{Elapsed: elapsed, Budget: timeout}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		res, err := cond(ctx)
		if err != nil {
			return zero, fmt.Errorf("poll: condition failed: %w", err)
		}
		if res.done {
			return res.value, nil
		}

		if err := o.clock.Sleep(ctx, o.interval); err != nil {
			return zero, err
		}
	}
}

// UntilTrue is Until for plain boolean checks.
func UntilTrue(ctx context.Context, check func(ctx context.Context) (bool, error), timeout time.Duration, opts ...Option) error {
	_, err := Until(ctx, func(ctx context.Context) (Result[struct{}], error) {
		ok, err := check(ctx)
		if err != nil || !ok {
			return Pending[struct{}](), err
		}
		return Done(struct{}{}), nil
	}, timeout, opts...)
	return err
}

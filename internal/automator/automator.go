// Package automator runs click plans against a page under the user's pacing
// settings and per-action quotas.
package automator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/cadence/internal/actions"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/config"
	"github.com/xkilldash9x/cadence/internal/counter"
	"github.com/xkilldash9x/cadence/internal/notify"
	"github.com/xkilldash9x/cadence/internal/observability"
	"github.com/xkilldash9x/cadence/internal/page"
	"github.com/xkilldash9x/cadence/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// ValidationError reports a misuse of the automator: a bad plan, an unknown
// setting or an invalid state transition.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "automator: " + e.Reason }

// State is the automator's run state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Clicker clicks a page element. *page.Page satisfies it.
type Clicker interface {
	Click(ctx context.Context, c page.Clickable) bool
}

// Step is one action in a plan.
type Step struct {
	// Action is the quota and summary key, e.g. "like".
	Action string
	Target page.Clickable
}

// Plan is a list of steps run Repeat times in order. Repeat 0 means once.
type Plan struct {
	Steps  []Step
	Repeat int
}

func (p Plan) validate() error {
	if len(p.Steps) == 0 {
		return &ValidationError{Reason: "plan has no steps"}
	}
	if p.Repeat < 0 {
		return &ValidationError{Reason: "plan repeat must not be negative"}
	}
	for i, st := range p.Steps {
		if st.Action == "" {
			return &ValidationError{Reason: fmt.Sprintf("step %d has no action", i)}
		}
		if st.Target == nil {
			return &ValidationError{Reason: fmt.Sprintf("step %d (%s) has no target", i, st.Action)}
		}
	}
	return nil
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Performed *counter.Counter
	Failed    *counter.Counter
	Skipped   *counter.Counter
	// Stopped is true when the run ended early through Stop or cancellation.
	Stopped bool
}

// Automator owns the settings and runs plans one at a time.
type Automator struct {
	store    store.Store
	recorder *actions.Recorder
	clicker  Clicker
	sleeper  *clock.Sleeper
	limiter  *rate.Limiter
	defaults Settings
	notifier notify.Notifier
	logger   *zap.Logger
	setLevel func(zapcore.Level)

	mu        sync.Mutex
	settings  Settings
	state     State
	terminate bool
}

// Deps are the automator's collaborators.
type Deps struct {
	Store    store.Store
	Recorder *actions.Recorder
	Clicker  Clicker
	Sleeper  *clock.Sleeper
	Notifier notify.Notifier
	Logger   *zap.Logger
	// SetLevel applies the logLevel setting. Defaults to the global logger.
	SetLevel func(zapcore.Level)
}

// NewLimiter builds the pacing limiter for cfg. Zero actions per minute
// disables pacing.
func NewLimiter(cfg config.AutomatorConfig) *rate.Limiter {
	if cfg.ActionsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(math.Max(1, float64(cfg.Burst)))
	return rate.NewLimiter(rate.Limit(cfg.ActionsPerMinute/60), burst)
}

// New creates an automator and loads its settings.
func New(ctx context.Context, d Deps, cfg config.AutomatorConfig) (*Automator, error) {
	if d.Store == nil || d.Recorder == nil || d.Clicker == nil {
		return nil, &ValidationError{Reason: "store, recorder and clicker are required"}
	}
	if d.Sleeper == nil {
		d.Sleeper = clock.NewSleeper()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.SetLevel == nil {
		d.SetLevel = observability.SetLevel
	}

	a := &Automator{
		store:    d.Store,
		recorder: d.Recorder,
		clicker:  d.Clicker,
		sleeper:  d.Sleeper,
		limiter:  NewLimiter(cfg),
		defaults: DefaultSettings(cfg),
		notifier: d.Notifier,
		logger:   d.Logger.Named("automator"),
		setLevel: d.SetLevel,
	}
	if _, err := a.Reload(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Reload re-reads settings from the store and applies them.
func (a *Automator) Reload(ctx context.Context) (Settings, error) {
	a.notifier.Debug("Loading settings")
	s, err := LoadSettings(ctx, a.store, a.defaults)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()

	a.sleeper.SetDefaults(s)
	a.setLevel(observability.LevelFromSetting(s.LogLevel))
	a.logger.Debug("Settings loaded",
		zap.Int("wait_time_ms", s.WaitTime),
		zap.Int("random_time_ms", s.RandomTime),
		zap.Int("log_level", s.LogLevel))
	return s, nil
}

// Update persists one setting and reloads.
func (a *Automator) Update(ctx context.Context, key string, value int) (Settings, error) {
	if err := SaveSetting(ctx, a.store, key, value); err != nil {
		return Settings{}, err
	}
	return a.Reload(ctx)
}

// Settings returns the current settings.
func (a *Automator) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// State returns the current run state.
func (a *Automator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Automator) transition(from, to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return &ValidationError{Reason: fmt.Sprintf("cannot move to %s while %s", to, a.state)}
	}
	a.state = to
	if to == StateRunning {
		a.terminate = false
	}
	return nil
}

// Stop asks a running plan to finish after its current step.
func (a *Automator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRunning {
		return &ValidationError{Reason: fmt.Sprintf("cannot stop while %s", a.state)}
	}
	a.terminate = true
	return nil
}

// Reset returns a stopped automator to idle.
func (a *Automator) Reset() error {
	return a.transition(StateStopped, StateIdle)
}

func (a *Automator) stopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.terminate
}

// Run executes plan. Quota-exhausted steps are skipped with a warning,
// failed clicks are counted, and the default wait follows every attempted
// step. Cancelling ctx ends the run at the next pause.
func (a *Automator) Run(ctx context.Context, plan Plan) (*Summary, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	if err := a.transition(StateIdle, StateRunning); err != nil {
		return nil, err
	}
	sum := &Summary{
		RunID:     uuid.NewString(),
		Started:   a.sleeper.Clock().Now(),
		Performed: counter.New(),
		Failed:    counter.New(),
		Skipped:   counter.New(),
	}
	logger := a.logger.With(zap.String("run_id", sum.RunID))
	logger.Info("Run started", zap.Int("steps", len(plan.Steps)), zap.Int("repeat", plan.Repeat))

	err := a.runPlan(ctx, plan, sum, logger)
	sum.Finished = a.sleeper.Clock().Now()

	final := StateIdle
	if sum.Stopped {
		final = StateStopped
	}
	a.mu.Lock()
	a.state = final
	a.mu.Unlock()

	logger.Info("Run finished",
		zap.Int("performed", sum.Performed.Total()),
		zap.Int("failed", sum.Failed.Total()),
		zap.Int("skipped", sum.Skipped.Total()),
		zap.Bool("stopped", sum.Stopped))
	if sum.Performed.Total() > 0 && err == nil {
		a.notifier.Success("Run complete", zap.Int("performed", sum.Performed.Total()))
	}
	return sum, err
}

func (a *Automator) runPlan(ctx context.Context, plan Plan, sum *Summary, logger *zap.Logger) error {
	rounds := plan.Repeat
	if rounds == 0 {
		rounds = 1
	}
	for round := 0; round < rounds; round++ {
		for _, st := range plan.Steps {
			if a.stopRequested() {
				sum.Stopped = true
				return nil
			}
			if err := ctx.Err(); err != nil {
				sum.Stopped = true
				return err
			}

			if ok, remaining := a.recorder.AllowAction(st.Action); !ok {
				a.notifier.Warn("Quota exhausted, skipping", zap.String("action", st.Action), zap.Int("remaining", remaining))
				sum.Skipped.Add(st.Action, 1)
				continue
			}

			if err := a.limiter.Wait(ctx); err != nil {
				sum.Stopped = true
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("pacing limiter: %w", err)
			}

			if a.clicker.Click(ctx, st.Target) {
				sum.Performed.Add(st.Action, 1)
				logger.Debug("Step performed", zap.String("action", st.Action), zap.String("target", st.Target.Name()))
			} else {
				sum.Failed.Add(st.Action, 1)
			}

			if err := a.sleeper.Wait(ctx); err != nil {
				sum.Stopped = true
				return err
			}
		}
	}
	return nil
}

// internal/browser/humanoid/humanoid.go
package humanoid

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/notify"
	"go.uber.org/zap"
)

// Sequencer performs human-paced clicks: scroll into view, hover, press,
// release, click and leave, with a jittered pause between each stage.
type Sequencer struct {
	// mu serializes whole click sequences. Two overlapping runs would
	// interleave their events on the page.
	mu sync.Mutex

	sleeper  *clock.Sleeper
	timing   Timing
	marker   Marker
	notifier notify.Notifier
	logger   *zap.Logger
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithTiming overrides the pauses between stages.
func WithTiming(t Timing) Option {
	return func(s *Sequencer) { s.timing = t }
}

// WithMarker shows each click position on the page.
func WithMarker(m Marker) Option {
	return func(s *Sequencer) { s.marker = m }
}

// WithNotifier sets where soft click failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Sequencer) { s.notifier = n }
}

// WithLogger sets the sequencer's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// New creates a sequencer that draws every pause and random offset from sleeper.
func New(sleeper *clock.Sleeper, opts ...Option) *Sequencer {
	s := &Sequencer{
		sleeper:  sleeper,
		timing:   DefaultTiming(),
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("humanoid")
	return s
}

// ClickPoint picks a random point inside box, edgePadding pixels in from each
// border, in page coordinates.
func (s *Sequencer) ClickPoint(box Box) Point {
	return Point{
		X: box.Left + edgePadding + s.sleeper.Float64()*math.Max(1, box.Width-2*edgePadding) + box.ScrollX,
		Y: box.Top + edgePadding + s.sleeper.Float64()*math.Max(1, box.Height-2*edgePadding) + box.ScrollY,
	}
}

func (s *Sequencer) pause(ctx context.Context, d Delay) error {
	return s.sleeper.Sleep(ctx, d.Ms, d.JitterMs)
}

// Perform runs one full click against el. The point is chosen once and used
// for every event. Any failure stops the sequence; events already
// dispatched stay dispatched.
func (s *Sequencer) Perform(ctx context.Context, el Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	box, err := el.BoundingBox(ctx)
	if err != nil {
		return fmt.Errorf("humanoid: failed to measure element: %w", err)
	}
	p := s.ClickPoint(box)
	s.logger.Debug("Simulating click", zap.Float64("x", p.X), zap.Float64("y", p.Y))

	if err := el.ScrollIntoView(ctx, CenterSmooth); err != nil {
		return fmt.Errorf("humanoid: failed to scroll element into view: %w", err)
	}
	if err := s.pause(ctx, s.timing.AfterScroll); err != nil {
		return err
	}

	stages := []struct {
		event MouseEventType
		after *Delay
	}{
		{MouseOver, &s.timing.AfterOver},
		{MouseDown, &s.timing.AfterDown},
		{MouseUp, &s.timing.AfterUp},
		{Click, &s.timing.AfterClick},
		{MouseOut, nil},
	}
	for _, st := range stages {
		ev := MouseEvent{Type: st.event, X: p.X, Y: p.Y, Button: ButtonLeft}
		if err := el.DispatchMouseEvent(ctx, ev); err != nil {
			return fmt.Errorf("humanoid: failed to dispatch %s: %w", st.event, err)
		}
		if st.event == Click {
			s.mark(ctx, p)
		}
		if st.after != nil {
			if err := s.pause(ctx, *st.after); err != nil {
				return err
			}
		}
	}
	return nil
}

// mark is cosmetic; a failure is logged and the click carries on.
func (s *Sequencer) mark(ctx context.Context, p Point) {
	if s.marker == nil {
		return
	}
	if err := s.marker.Show(ctx, p); err != nil {
		s.logger.Debug("Failed to show click marker", zap.Error(err))
	}
}

// Click performs a click and reports success. Failures are sent to the
// notifier instead of being returned.
func (s *Sequencer) Click(ctx context.Context, el Element) bool {
	if err := s.Perform(ctx, el); err != nil {
		s.notifier.Error("Unable to simulate a click", zap.Error(err))
		return false
	}
	return true
}

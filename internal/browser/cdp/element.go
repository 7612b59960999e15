// internal/browser/cdp/element.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/poll"
	"go.uber.org/zap"
)

// ErrElementNotFound is returned when the selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// scrollSettleTimeout bounds the wait for a smooth scroll to finish.
const scrollSettleTimeout = 2 * time.Second

// Element is a page element addressed by CSS selector, optionally inside an
// iframe. The selector is re-resolved on every call so a re-rendered node is
// picked up.
type Element struct {
	eval     Evaluator
	frame    string
	selector string
	clock    clock.Clock
	logger   *zap.Logger
}

var _ humanoid.Element = (*Element)(nil)

// NewElement addresses selector through eval.
func NewElement(eval Evaluator, selector string, c clock.Clock, logger *zap.Logger) *Element {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Element{eval: eval, selector: selector, clock: c, logger: logger.Named("element")}
}

// NewFrameElement addresses selector inside the document of the iframe
// matching frame.
func NewFrameElement(eval Evaluator, frame, selector string, c clock.Clock, logger *zap.Logger) *Element {
	el := NewElement(eval, selector, c, logger)
	el.frame = frame
	return el
}

// describe names the element in errors and logs.
func (e *Element) describe() string {
	if e.frame == "" {
		return e.selector
	}
	return e.frame + " -> " + e.selector
}

type rect struct {
	Found   bool    `json:"found"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
}

func (e *Element) notFound() error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, e.describe())
}

// BoundingBox measures the element's client rect with the current scroll.
func (e *Element) BoundingBox(ctx context.Context) (humanoid.Box, error) {
	var r rect
	if err := e.eval.Evaluate(ctx, rectScript(e.frame, e.selector), &r); err != nil {
		return humanoid.Box{}, fmt.Errorf("failed to measure %s: %w", e.describe(), err)
	}
	if !r.Found {
		return humanoid.Box{}, e.notFound()
	}
	return humanoid.Box{
		Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height,
		ScrollX: r.ScrollX, ScrollY: r.ScrollY,
	}, nil
}

// ScrollIntoView starts the scroll and waits for it to settle. A scroll that
// never settles (an endless feed, say) is logged and tolerated.
func (e *Element) ScrollIntoView(ctx context.Context, opts humanoid.ScrollOptions) error {
	var ok bool
	if err := e.eval.Evaluate(ctx, scrollScript(e.frame, e.selector, opts.Block, opts.Behavior), &ok); err != nil {
		return fmt.Errorf("failed to scroll %s: %w", e.describe(), err)
	}
	if !ok {
		return e.notFound()
	}

	err := e.waitScrollSettled(ctx)
	if errors.Is(err, poll.ErrTimeout) {
		e.logger.Debug("Scroll did not settle", zap.String("selector", e.describe()), zap.Error(err))
		return nil
	}
	return err
}

// waitScrollSettled polls the scroll position until two consecutive reads
// agree.
func (e *Element) waitScrollSettled(ctx context.Context) error {
	var last []float64
	return poll.UntilTrue(ctx, func(ctx context.Context) (bool, error) {
		var pos []float64
		if err := e.eval.Evaluate(ctx, scrollPositionScript, &pos); err != nil {
			return false, err
		}
		settled := len(last) == 2 && len(pos) == 2 && last[0] == pos[0] && last[1] == pos[1]
		last = pos
		return settled, nil
	}, scrollSettleTimeout, poll.WithClock(e.clock), poll.WithInterval(50*time.Millisecond))
}

// DispatchMouseEvent fires a synthetic DOM MouseEvent on the element.
func (e *Element) DispatchMouseEvent(ctx context.Context, ev humanoid.MouseEvent) error {
	var ok bool
	script := dispatchScript(e.frame, e.selector, string(ev.Type), ev.X, ev.Y, int(ev.Button))
	if err := e.eval.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("failed to dispatch %s on %s: %w", ev.Type, e.describe(), err)
	}
	if !ok {
		return e.notFound()
	}
	return nil
}

// Exists reports whether the selector currently matches a node.
func (e *Element) Exists(ctx context.Context) (bool, error) {
	var ok bool
	if err := e.eval.Evaluate(ctx, existsScript(e.frame, e.selector), &ok); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", e.describe(), err)
	}
	return ok, nil
}

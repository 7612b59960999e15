// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/clock"
	"go.uber.org/zap"
)

// Page exposes page-level probes and element lookup over an Evaluator.
type Page struct {
	eval   Evaluator
	clock  clock.Clock
	logger *zap.Logger
}

// NewPage wraps eval.
func NewPage(eval Evaluator, c clock.Clock, logger *zap.Logger) *Page {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{eval: eval, clock: c, logger: logger}
}

// BodyPresent reports whether the document has a body yet.
func (p *Page) BodyPresent(ctx context.Context) (bool, error) {
	var ok bool
	if err := p.eval.Evaluate(ctx, bodyPresentScript, &ok); err != nil {
		return false, fmt.Errorf("failed to probe document body: %w", err)
	}
	return ok, nil
}

// Element addresses selector on this page.
func (p *Page) Element(selector string) *Element {
	return NewElement(p.eval, selector, p.clock, p.logger)
}

// FrameElement addresses selector inside the iframe matching frame.
func (p *Page) FrameElement(frame, selector string) *Element {
	return NewFrameElement(p.eval, frame, selector, p.clock, p.logger)
}

type frameState struct {
	Found bool   `json:"found"`
	State string `json:"state"`
}

// FrameState reports whether the iframe matching frame exists and whether
// its document has finished loading.
func (p *Page) FrameState(ctx context.Context, frame string) (found, complete bool, err error) {
	var st frameState
	if err := p.eval.Evaluate(ctx, frameStateScript(frame), &st); err != nil {
		return false, false, fmt.Errorf("failed to probe frame %s: %w", frame, err)
	}
	return st.Found, st.Found && st.State == "complete", nil
}

// Marker draws a fading dot where clicks land.
type Marker struct {
	eval  Evaluator
	color string
}

var _ humanoid.Marker = (*Marker)(nil)

// DefaultMarkerColor is used when no color is configured.
const DefaultMarkerColor = "#222"

// NewMarker creates a marker drawing in color.
func NewMarker(eval Evaluator, color string) *Marker {
	if color == "" {
		color = DefaultMarkerColor
	}
	return &Marker{eval: eval, color: color}
}

func (m *Marker) Show(ctx context.Context, pt humanoid.Point) error {
	if err := m.eval.Evaluate(ctx, markerScript(pt.X, pt.Y, m.color), nil); err != nil {
		return fmt.Errorf("failed to draw click marker: %w", err)
	}
	return nil
}

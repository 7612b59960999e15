// internal/browser/humanoid/interface.go
package humanoid

import "context"

// MouseEventType names a DOM mouse event.
type MouseEventType string

const (
	MouseOver MouseEventType = "mouseover"
	MouseDown MouseEventType = "mousedown"
	MouseUp   MouseEventType = "mouseup"
	Click     MouseEventType = "click"
	MouseOut  MouseEventType = "mouseout"
)

// MouseButton mirrors MouseEvent.button in the DOM.
type MouseButton int

const ButtonLeft MouseButton = 0

// MouseEvent is a synthetic event dispatched at page coordinates.
type MouseEvent struct {
	Type   MouseEventType
	X      float64
	Y      float64
	Button MouseButton
}

// ScrollOptions mirrors the DOM scrollIntoView options.
type ScrollOptions struct {
	Block    string
	Behavior string
}

// CenterSmooth scrolls the element to the middle of the viewport with animation.
var CenterSmooth = ScrollOptions{Block: "center", Behavior: "smooth"}

// Box is an element's client rectangle plus the document scroll offset at the
// time it was measured.
type Box struct {
	Left    float64
	Top     float64
	Width   float64
	Height  float64
	ScrollX float64
	ScrollY float64
}

// Point is a position in page coordinates.
type Point struct {
	X float64
	Y float64
}

// Element is the surface the sequencer drives. The chromedp-backed
// implementation lives in internal/browser/cdp.
type Element interface {
	BoundingBox(ctx context.Context) (Box, error)
	ScrollIntoView(ctx context.Context, opts ScrollOptions) error
	DispatchMouseEvent(ctx context.Context, ev MouseEvent) error
}

// Marker draws a visual indication of where a click landed.
type Marker interface {
	Show(ctx context.Context, p Point) error
}

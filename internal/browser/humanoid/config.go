// internal/browser/humanoid/config.go
package humanoid

// Delay is a base pause plus a random extra, both in milliseconds.
type Delay struct {
	Ms       int
	JitterMs int
}

// Timing holds the pause taken after each stage of a click.
type Timing struct {
	AfterScroll Delay
	AfterOver   Delay
	AfterDown   Delay
	AfterUp     Delay
	AfterClick  Delay
}

// DefaultTiming is the cadence of a deliberate human click.
func DefaultTiming() Timing {
	return Timing{
		AfterScroll: Delay{Ms: 100, JitterMs: 100},
		AfterOver:   Delay{Ms: 100, JitterMs: 300},
		AfterDown:   Delay{Ms: 100, JitterMs: 100},
		AfterUp:     Delay{Ms: 50, JitterMs: 50},
		AfterClick:  Delay{Ms: 200, JitterMs: 500},
	}
}

// edgePadding keeps the click this many pixels inside the element border.
const edgePadding = 2.0

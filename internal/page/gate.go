// Package page models an automated web page: when it is ready, where its
// elements are and how they are clicked.
package page

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/poll"
	"go.uber.org/zap"
)

// Probe reports page-level readiness.
type Probe interface {
	BodyPresent(ctx context.Context) (bool, error)
}

// Gate blocks until the page is ready and fires first-ready callbacks.
type Gate struct {
	probe  Probe
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	pending []func(ctx context.Context)
	ready   bool
}

// NewGate creates a gate over probe. A nil clock uses the real one.
func NewGate(probe Probe, c clock.Clock, logger *zap.Logger) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{probe: probe, clock: c, logger: logger.Named("gate")}
}

// OnFirstReady registers fn to run once, after the next successful Ready.
func (g *Gate) OnFirstReady(fn func(ctx context.Context)) {
	g.mu.Lock()
	g.pending = append(g.pending, fn)
	g.mu.Unlock()
}

// Ready waits up to timeout (default 10s) for the document body, then runs
// any callbacks that have not run yet. Every call re-checks the page.
func (g *Gate) Ready(ctx context.Context, timeout time.Duration) error {
	err := poll.UntilTrue(ctx, g.probe.BodyPresent, timeout, poll.WithClock(g.clock), poll.WithLogger(g.logger))
	if err != nil {
		return err
	}

	g.mu.Lock()
	callbacks := g.pending
	g.pending = nil
	first := !g.ready
	g.ready = true
	g.mu.Unlock()

	if first {
		g.logger.Debug("Page ready")
	}
	for _, fn := range callbacks {
		fn(ctx)
	}
	return nil
}

// IsReady reports whether Ready has succeeded at least once.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

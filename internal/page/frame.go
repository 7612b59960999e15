package page

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/cadence/internal/poll"
	"go.uber.org/zap"
)

// FrameProbe reports on iframes in the page. *cdp.Page satisfies it.
type FrameProbe interface {
	// FrameState reports whether the iframe exists and whether its document
	// has finished loading.
	FrameState(ctx context.Context, frame string) (found, complete bool, err error)
}

// FrameLocator resolves selector inside the iframe matching frame.
type FrameLocator func(frame, selector string) Element

var (
	// ErrNoFrames is returned by frame operations on a page built without
	// frame support.
	ErrNoFrames = errors.New("page: no frame support configured")
	// ErrFrameGone is returned when the iframe disappears while waiting for
	// an element inside it.
	ErrFrameGone = errors.New("page: frame removed before element appeared")
)

// FrameReady waits up to timeout (default 10s) for the named iframe to
// exist with a fully loaded document. A timeout yields *NotFoundError.
func (p *Page) FrameReady(ctx context.Context, frame string, timeout time.Duration) error {
	if p.frames == nil {
		return ErrNoFrames
	}
	sel, err := p.registry.Lookup(frame)
	if err != nil {
		return err
	}
	err = poll.UntilTrue(ctx, func(ctx context.Context) (bool, error) {
		_, complete, err := p.frames.FrameState(ctx, sel)
		return complete, err
	}, timeout, poll.WithClock(p.clock), poll.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			p.notifier.Debug("Frame never readied", zap.String("frame", frame), zap.String("selector", sel))
			return &NotFoundError{Name: frame, Selector: sel, Err: err}
		}
		return err
	}
	p.notifier.Debug("Frame ready", zap.String("frame", frame))
	return nil
}

// FindInFrame resolves a registered element name inside a registered frame.
func (p *Page) FindInFrame(frame, name string) (Element, error) {
	if p.locateFramed == nil {
		return nil, ErrNoFrames
	}
	frameSel, err := p.registry.Lookup(frame)
	if err != nil {
		return nil, err
	}
	sel, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.locateFramed(frameSel, sel), nil
}

// WaitForInFrame waits for the frame to be ready and then for the named
// element inside it. Both waits share one timeout budget. If the frame is
// removed in between, ErrFrameGone is returned.
func (p *Page) WaitForInFrame(ctx context.Context, frame, name string, timeout time.Duration) (Element, error) {
	if timeout <= 0 {
		timeout = poll.DefaultTimeout
	}
	start := p.clock.Now()
	el, err := p.FindInFrame(frame, name)
	if err != nil {
		return nil, err
	}
	if err := p.FrameReady(ctx, frame, timeout); err != nil {
		return nil, err
	}

	frameSel, _ := p.registry.Lookup(frame)
	sel, _ := p.registry.Lookup(name)
	elapsed := p.clock.Now().Sub(start)
	if elapsed >= timeout {
		return nil, &NotFoundError{Name: name, Selector: sel, Err: &poll.TimeoutError{Elapsed: elapsed, Budget: timeout}}
	}

	err = poll.UntilTrue(ctx, func(ctx context.Context) (bool, error) {
		found, _, err := p.frames.FrameState(ctx, frameSel)
		if err != nil {
			return false, err
		}
		if !found {
			return false, ErrFrameGone
		}
		return el.Exists(ctx)
	}, timeout-elapsed, poll.WithClock(p.clock), poll.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, ErrFrameGone) {
			p.notifier.Warn("The page changed before the frame element was ready", zap.String("frame", frame))
			return nil, err
		}
		if errors.Is(err, poll.ErrTimeout) {
			p.notifier.Warn("Could not find frame element", zap.String("frame", frame), zap.String("name", name))
			return nil, &NotFoundError{Name: name, Selector: sel, Err: err}
		}
		return nil, err
	}
	return el, nil
}

// FrameButton builds a button from a registered name inside a frame.
func (p *Page) FrameButton(frame, name, action string) (*Button, error) {
	el, err := p.FindInFrame(frame, name)
	if err != nil {
		return nil, err
	}
	return NewButton(name, el, action, p.recorder, p.notifier), nil
}

// FrameLink builds a link from a registered name inside a frame.
func (p *Page) FrameLink(frame, name string) (*Link, error) {
	el, err := p.FindInFrame(frame, name)
	if err != nil {
		return nil, err
	}
	return NewLink(name, el, p.notifier), nil
}

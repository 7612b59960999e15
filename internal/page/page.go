package page

import (
	"context"
	"errors"
	"time"

	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/notify"
	"github.com/xkilldash9x/cadence/internal/poll"
	"go.uber.org/zap"
)

// Locator resolves a CSS selector to an element handle. Resolution is lazy;
// the element may not exist yet.
type Locator func(selector string) Element

// Page ties a readiness gate, a selector registry and a clicker together.
type Page struct {
	Name string

	gate         *Gate
	registry     *Registry
	locate       Locator
	frames       FrameProbe
	locateFramed FrameLocator
	dialogs      ConfirmResponder
	clicker      Clicker
	recorder     ActionLogger
	notifier     notify.Notifier
	clock        clock.Clock
	logger       *zap.Logger
}

// Deps are the collaborators a Page needs.
type Deps struct {
	Probe    Probe
	Locate   Locator
	Clicker  Clicker
	Recorder ActionLogger
	Notifier notify.Notifier
	Clock    clock.Clock
	Logger   *zap.Logger

	// Frames and LocateInFrame are needed only for elements inside iframes.
	Frames        FrameProbe
	LocateInFrame FrameLocator

	// Dialogs answers confirm prompts raised by buttons.
	Dialogs ConfirmResponder
}

// New creates a page named name with the given selectors.
func New(name string, selectors *Registry, d Deps) *Page {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if selectors == nil {
		selectors = NewRegistry(nil)
	}
	logger := d.Logger.Named("page")
	logger.Debug("Creating page", zap.String("page", name), zap.Int("selectors", selectors.Len()))
	return &Page{
		Name:         name,
		gate:         NewGate(d.Probe, d.Clock, logger),
		registry:     selectors,
		locate:       d.Locate,
		frames:       d.Frames,
		locateFramed: d.LocateInFrame,
		dialogs:      d.Dialogs,
		clicker:      d.Clicker,
		recorder:     d.Recorder,
		notifier:     d.Notifier,
		clock:        d.Clock,
		logger:       logger,
	}
}

// Gate exposes the readiness gate, e.g. to register OnFirstReady callbacks.
func (p *Page) Gate() *Gate { return p.gate }

// Ready waits for the page to be ready.
func (p *Page) Ready(ctx context.Context, timeout time.Duration) error {
	return p.gate.Ready(ctx, timeout)
}

// Find resolves a registered name to an element handle.
func (p *Page) Find(name string) (Element, error) {
	sel, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.locate(sel), nil
}

// Button builds a button from a registered name. action is recorded on
// every click.
func (p *Page) Button(name, action string) (*Button, error) {
	el, err := p.Find(name)
	if err != nil {
		return nil, err
	}
	return NewButton(name, el, action, p.recorder, p.notifier), nil
}

// Link builds a link from a registered name.
func (p *Page) Link(name string) (*Link, error) {
	el, err := p.Find(name)
	if err != nil {
		return nil, err
	}
	return NewLink(name, el, p.notifier), nil
}

// ExpectConfirm makes b answer the confirm dialog its click opens: accept
// clicks OK, otherwise Cancel.
func (p *Page) ExpectConfirm(b *Button, accept bool) error {
	if p.dialogs == nil {
		return ErrNoDialogs
	}
	b.confirm = &confirmAnswer{responder: p.dialogs, accept: accept}
	return nil
}

// Click clicks c and reports success.
func (p *Page) Click(ctx context.Context, c Clickable) bool {
	return c.Click(ctx, p.clicker)
}

// WaitFor waits up to timeout for the named element to appear. Both an
// unregistered name and a timeout yield *NotFoundError.
func (p *Page) WaitFor(ctx context.Context, name string, timeout time.Duration) (Element, error) {
	sel, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	el := p.locate(sel)
	err = poll.UntilTrue(ctx, el.Exists, timeout, poll.WithClock(p.clock), poll.WithLogger(p.logger))
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			p.notifier.Warn("Could not find element", zap.String("name", name), zap.String("selector", sel))
			return nil, &NotFoundError{Name: name, Selector: sel, Err: err}
		}
		return nil, err
	}
	return el, nil
}

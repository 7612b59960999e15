package page

import (
	"context"
	"errors"

	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/notify"
	"go.uber.org/zap"
)

// Element is a page element that can be clicked and checked for presence.
type Element interface {
	humanoid.Element
	Exists(ctx context.Context) (bool, error)
}

// Clicker performs a soft-failing click. *humanoid.Sequencer satisfies it.
type Clicker interface {
	Click(ctx context.Context, el humanoid.Element) bool
}

// ActionLogger records an automated action. *actions.Recorder satisfies it.
type ActionLogger interface {
	Log(ctx context.Context, action string, ts ...int64) (int64, error)
}

// ConfirmResponder answers the next confirm dialog. *cdp.Dialogs satisfies it.
type ConfirmResponder interface {
	ArmConfirm(accept bool)
}

// ErrNoDialogs is returned when a confirm answer is requested on a page
// without a dialog responder.
var ErrNoDialogs = errors.New("page: no dialog responder configured")

type confirmAnswer struct {
	responder ConfirmResponder
	accept    bool
}

// Clickable is anything on the page that can be clicked.
type Clickable interface {
	// Name is the registry name the clickable was built from.
	Name() string
	Target() Element
	Click(ctx context.Context, c Clicker) bool
}

// Button is a clickable that records its action kind before clicking.
type Button struct {
	name     string
	el       Element
	action   string
	recorder ActionLogger
	notifier notify.Notifier
	confirm  *confirmAnswer
}

// NewButton creates a button. An empty action clicks without recording.
func NewButton(name string, el Element, action string, recorder ActionLogger, n notify.Notifier) *Button {
	if n == nil {
		n = notify.Nop{}
	}
	return &Button{name: name, el: el, action: action, recorder: recorder, notifier: n}
}

func (b *Button) Name() string    { return b.name }
func (b *Button) Target() Element { return b.el }

// Action returns the action kind logged on click.
func (b *Button) Action() string { return b.action }

// Click logs the action, then clicks. If the action cannot be recorded the
// click is not attempted, so history never undercounts what was done.
func (b *Button) Click(ctx context.Context, c Clicker) bool {
	if b.action == "" || b.recorder == nil {
		b.notifier.Debug("Clicking button", zap.String("button", b.name))
		return b.press(ctx, c)
	}
	if _, err := b.recorder.Log(ctx, b.action); err != nil {
		b.notifier.Error("Unable to record action", zap.String("action", b.action), zap.Error(err))
		return false
	}
	b.notifier.Debug("Clicking "+b.action+" button", zap.String("button", b.name))
	return b.press(ctx, c)
}

// press arms the confirm answer, if any, and clicks.
func (b *Button) press(ctx context.Context, c Clicker) bool {
	if b.confirm != nil {
		b.confirm.responder.ArmConfirm(b.confirm.accept)
		b.notifier.Debug("Answering next confirm", zap.String("button", b.name), zap.Bool("accept", b.confirm.accept))
	}
	return c.Click(ctx, b.el)
}

// Link is a plain clickable anchor.
type Link struct {
	name     string
	el       Element
	notifier notify.Notifier
}

// NewLink creates a link.
func NewLink(name string, el Element, n notify.Notifier) *Link {
	if n == nil {
		n = notify.Nop{}
	}
	return &Link{name: name, el: el, notifier: n}
}

func (l *Link) Name() string    { return l.name }
func (l *Link) Target() Element { return l.el }

func (l *Link) Click(ctx context.Context, c Clicker) bool {
	l.notifier.Debug("Clicking link", zap.String("link", l.name))
	return c.Click(ctx, l.el)
}

// internal/browser/cdp/dialogs.go
package cdp

import (
	"sync"

	"github.com/chromedp/cdproto/page"
	"go.uber.org/zap"
)

// DialogAnswer accepts or dismisses an open JavaScript dialog.
type DialogAnswer func(accept bool) error

// Dialogs answers confirm() dialogs the page opens. Each ArmConfirm answers
// exactly one dialog; unarmed dialogs are left for the user.
type Dialogs struct {
	answer DialogAnswer
	logger *zap.Logger

	mu     sync.Mutex
	queued []bool
}

// NewDialogs creates a responder that replies through answer.
func NewDialogs(answer DialogAnswer, logger *zap.Logger) *Dialogs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialogs{answer: answer, logger: logger.Named("dialogs")}
}

// ArmConfirm queues the answer for the next confirm dialog: true clicks OK,
// false clicks Cancel.
func (d *Dialogs) ArmConfirm(accept bool) {
	d.mu.Lock()
	d.queued = append(d.queued, accept)
	d.mu.Unlock()
}

// Pending returns the number of armed answers not yet used.
func (d *Dialogs) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queued)
}

// Opened handles a dialog-opening event and reports whether it was answered.
func (d *Dialogs) Opened(ev *page.EventJavascriptDialogOpening) bool {
	if ev.Type != page.DialogTypeConfirm {
		return false
	}
	d.mu.Lock()
	if len(d.queued) == 0 {
		d.mu.Unlock()
		d.logger.Debug("Confirm dialog left open", zap.String("message", ev.Message))
		return false
	}
	accept := d.queued[0]
	d.queued = d.queued[1:]
	d.mu.Unlock()

	if err := d.answer(accept); err != nil {
		d.logger.Warn("Failed to answer confirm dialog", zap.String("message", ev.Message), zap.Error(err))
		return false
	}
	d.logger.Debug("Answered confirm dialog", zap.String("message", ev.Message), zap.Bool("accept", accept))
	return true
}

// internal/browser/cdp/session.go
package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/cadence/internal/config"
	"go.uber.org/zap"
)

// Evaluator runs a script in the page and decodes its return value into res.
// Session is the production implementation; tests substitute a fake.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, res any) error
}

const (
	evaluateTimeout = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ExecAllocatorOptions builds the Chrome launch flags for cfg.
func ExecAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// Session owns a browser process and one tab.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	dialogs     *Dialogs
	logger      *zap.Logger
}

// NewSession launches the browser described by cfg. The browser lives until
// Close is called or ctx is cancelled.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, ExecAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser started", zap.Bool("headless", cfg.Headless))

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger,
	}
	s.dialogs = NewDialogs(func(accept bool) error {
		return chromedp.Run(tabCtx, page.HandleJavaScriptDialog(accept))
	}, logger)
	s.listen()
	return s, nil
}

// listen routes tab events. Handlers that send commands run on their own
// goroutine; the listener must not block.
func (s *Session) listen() {
	chromedp.ListenTarget(s.tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			go s.dialogs.Opened(ev)
		}
	})
}

// Dialogs returns the responder for confirm dialogs opened in the tab.
func (s *Session) Dialogs() *Dialogs { return s.dialogs }

// run executes actions on the tab, aborting when either ctx or the session
// ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	s.logger.Debug("Navigated", zap.String("url", url))
	return nil
}

// Evaluate runs script and decodes the returned value into res, which may be
// nil when no result is needed.
func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	opCtx, cancel := context.WithTimeout(ctx, evaluateTimeout)
	defer cancel()

	err := s.run(opCtx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("script evaluation timed out after %v: %w", evaluateTimeout, opCtx.Err())
		}
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// Close shuts the browser down gracefully, falling back to cancellation.
func (s *Session) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.tabCtx) }()

	var err error
	select {
	case err = <-done:
	case <-shutdownCtx.Done():
		err = fmt.Errorf("browser shutdown timed out: %w", shutdownCtx.Err())
	}
	s.tabCancel()
	s.allocCancel()
	s.logger.Debug("Browser closed")
	return err
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/xkilldash9x/cadence/internal/actions"
	"github.com/xkilldash9x/cadence/internal/automator"
	"github.com/xkilldash9x/cadence/internal/browser/cdp"
	"github.com/xkilldash9x/cadence/internal/browser/humanoid"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/counter"
	"github.com/xkilldash9x/cadence/internal/journal"
	"github.com/xkilldash9x/cadence/internal/notify"
	"github.com/xkilldash9x/cadence/internal/observability"
	"github.com/xkilldash9x/cadence/internal/page"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	var planPath, url string
	var repeat int
	var headless bool

	cmd := &cobra.Command{
		Use:   "run --plan plan.yaml",
		Short: "Opens a page in the browser and runs a click plan against it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}

			pf, err := loadPlanFile(afero.NewOsFs(), planPath)
			if err != nil {
				return err
			}
			if url != "" {
				pf.URL = url
			}
			if pf.URL == "" {
				return fmt.Errorf("no url given in the plan or via --url")
			}
			if cmd.Flags().Changed("repeat") {
				pf.Repeat = repeat
			}

			env, err := openJournal(ctx, cfg, clock.Real{}, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			session, err := cdp.NewSession(ctx, cfg.Browser(), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					logger.Warn("Error during browser shutdown", zap.Error(err))
				}
			}()
			if err := session.Navigate(ctx, pf.URL); err != nil {
				return err
			}

			notifier := notify.NewZap(logger)
			sleeper := clock.NewSleeper(clock.WithLogger(logger.Named("sleeper")))
			seqOpts := []humanoid.Option{humanoid.WithNotifier(notifier), humanoid.WithLogger(logger)}
			if cfg.Browser().ShowClicks {
				seqOpts = append(seqOpts, humanoid.WithMarker(cdp.NewMarker(session, cfg.Browser().MarkerColor)))
			}
			seq := humanoid.New(sleeper, seqOpts...)

			browserPage := cdp.NewPage(session, clock.Real{}, logger)
			locateInFrame := func(frame, sel string) page.Element { return browserPage.FrameElement(frame, sel) }
			pg := page.New(pf.Page, page.NewRegistry(pf.Selectors), page.Deps{
				Probe:    browserPage,
				Locate:   func(sel string) page.Element { return browserPage.Element(sel) },
				Clicker:  seq,
				Recorder: env.recorder,
				Notifier: notifier,
				Logger:   logger,

				Frames:        browserPage,
				LocateInFrame: locateInFrame,
				Dialogs:       session.Dialogs(),
			})
			pg.Gate().OnFirstReady(func(ctx context.Context) {
				notifier.Info("Page ready", zap.String("page", pf.Page), zap.String("url", pf.URL))
			})
			if err := pg.Ready(ctx, cfg.Browser().ReadyTimeout); err != nil {
				return fmt.Errorf("page %s never became ready: %w", pf.Page, err)
			}

			plan, err := buildPlan(ctx, pg, pf, cfg.Browser().ReadyTimeout)
			if err != nil {
				return err
			}

			auto, err := automator.New(ctx, automator.Deps{
				Store:    env.store,
				Recorder: env.recorder,
				Clicker:  pg,
				Sleeper:  sleeper,
				Notifier: notifier,
				Logger:   logger,
			}, cfg.Automator())
			if err != nil {
				return err
			}

			sum, err := runWithJanitor(ctx, auto, plan, env.recorder, cfg.Automator().Retention, cfg.Automator().JanitorInterval, logger)
			if sum != nil {
				writeSummary(cmd.OutOrStdout(), sum)
			}
			if errors.Is(err, context.Canceled) {
				logger.Warn("Run aborted by signal")
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "YAML plan describing the page and the steps to run")
	cmd.Flags().StringVarP(&url, "url", "u", "", "page to open (overrides the plan's url)")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 0, "times to repeat the plan (overrides the plan's repeat)")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window (overrides config)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// planRunner is the part of the automator driven by runWithJanitor.
type planRunner interface {
	Run(ctx context.Context, plan automator.Plan) (*automator.Summary, error)
}

// runWithJanitor runs plan while a janitor trims journal entries older than
// retention. The janitor stops when the run ends.
func runWithJanitor(ctx context.Context, r planRunner, plan automator.Plan, rec *actions.Recorder, retention, interval time.Duration, logger *zap.Logger) (*automator.Summary, error) {
	g, gctx := errgroup.WithContext(ctx)
	janitorCtx, stopJanitor := context.WithCancel(gctx)
	defer stopJanitor()

	var sum *automator.Summary
	g.Go(func() error {
		defer stopJanitor()
		var err error
		sum, err = r.Run(gctx, plan)
		return err
	})
	if retention > 0 && interval > 0 {
		g.Go(func() error {
			runJanitor(janitorCtx, rec, clock.Real{}, retention, interval, logger)
			return nil
		})
	}

	err := g.Wait()
	return sum, err
}

// runJanitor clears entries older than retention immediately and then every
// interval until ctx is done. Failures are logged and retried next tick.
func runJanitor(ctx context.Context, rec *actions.Recorder, c clock.Clock, retention, interval time.Duration, logger *zap.Logger) {
	logger = logger.Named("janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cutoff := c.Now().Add(-retention).UnixMilli()
		if rec.Count() > rec.Count(journal.Since(cutoff)) {
			if _, err := rec.Clear(ctx, cutoff); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("Failed to trim action journal", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func writeSummary(w io.Writer, sum *automator.Summary) {
	tw := newTable(w)
	tw.SetTitle("Run %s", sum.RunID)
	tw.AppendHeader(table.Row{"Action", "Performed", "Failed", "Skipped"})

	keys := make(map[string]bool)
	var order []string
	for _, c := range []*counter.Counter{sum.Performed, sum.Failed, sum.Skipped} {
		for _, k := range c.Keys() {
			if !keys[k] {
				keys[k] = true
				order = append(order, k)
			}
		}
	}
	for _, k := range order {
		tw.AppendRow(table.Row{k, sum.Performed.Get(k), sum.Failed.Get(k), sum.Skipped.Get(k)})
	}
	tw.AppendFooter(table.Row{"Total", sum.Performed.Total(), sum.Failed.Total(), sum.Skipped.Total()})
	tw.SetCaption("duration %s, stopped early: %t", sum.Finished.Sub(sum.Started).Round(time.Millisecond), sum.Stopped)
	_ = tw.Render()
}

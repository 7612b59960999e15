package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/cadence/internal/actions"
	"github.com/xkilldash9x/cadence/internal/clock"
	"github.com/xkilldash9x/cadence/internal/config"
	"github.com/xkilldash9x/cadence/internal/counter"
	"github.com/xkilldash9x/cadence/internal/journal"
	"github.com/xkilldash9x/cadence/internal/observability"
	"github.com/xkilldash9x/cadence/internal/store"
	"go.uber.org/zap"
)

// journalEnv bundles the store and recorder opened for a command.
type journalEnv struct {
	store    store.Store
	recorder *actions.Recorder
}

func (e *journalEnv) Close() {
	if err := e.store.Close(); err != nil {
		observability.GetLogger().Warn("Error closing store", zap.Error(err))
	}
}

// openJournal opens the configured store and loads the action journal.
func openJournal(ctx context.Context, cfg *config.Config, c clock.Clock, logger *zap.Logger) (*journalEnv, error) {
	st, err := store.Open(ctx, cfg.Store(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store().Backend, err)
	}
	rec, err := actions.New(ctx, st,
		actions.WithClock(c),
		actions.WithLogger(logger),
		actions.WithQuotas(actions.QuotasFromConfig(cfg.Quotas())...))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to load action journal: %w", err)
	}
	return &journalEnv{store: st, recorder: rec}, nil
}

// parseCutoff accepts either a duration measured back from now ("24h") or
// an RFC3339 timestamp.
func parseCutoff(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration %q must not be negative", s)
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a duration nor an RFC3339 timestamp", s)
	}
	return t, nil
}

// journalFilters builds filter options from the shared --action and --since flags.
func journalFilters(action, since string, now time.Time) ([]journal.FilterOption, error) {
	var opts []journal.FilterOption
	if action != "" {
		opts = append(opts, journal.Label(action))
	}
	if since != "" {
		t, err := parseCutoff(since, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		opts = append(opts, journal.SinceTime(t))
	}
	return opts, nil
}

func newHistoryCmd() *cobra.Command {
	var action, since, format string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recorded actions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			c := clock.Real{}
			filters, err := journalFilters(action, since, c.Now())
			if err != nil {
				return err
			}

			env, err := openJournal(ctx, cfg, c, observability.GetLogger())
			if err != nil {
				return err
			}
			defer env.Close()

			entries := env.recorder.Get(filters...).Sorted()
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			out := cmd.OutOrStdout()
			return writeEntries(out, entries, resolveFormat(format, out))
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "only show this action kind")
	cmd.Flags().StringVarP(&since, "since", "s", "", "only show actions since a duration ago (e.g. 24h) or an RFC3339 time")
	cmd.Flags().StringVarP(&format, "format", "f", "auto", "output format: auto, table or jsonl")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most the newest n actions")
	return cmd
}

func newCountCmd() *cobra.Command {
	var since string
	var top int

	cmd := &cobra.Command{
		Use:   "count [action...]",
		Short: "Counts recorded actions per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			c := clock.Real{}
			filters, err := journalFilters("", since, c.Now())
			if err != nil {
				return err
			}

			env, err := openJournal(ctx, cfg, c, observability.GetLogger())
			if err != nil {
				return err
			}
			defer env.Close()

			labels := env.recorder.Get(filters...).Labels()
			kinds := args
			if len(kinds) == 0 {
				kinds = make([]string, 0, len(labels))
				for label := range labels {
					kinds = append(kinds, label)
				}
				sort.Strings(kinds)
			}

			// Requested kinds are listed even when they have no entries.
			tally := counter.New(kinds...)
			for _, kind := range kinds {
				tally.Add(kind, labels[kind])
			}

			rows := tally.Entries()
			if len(args) == 0 {
				rows = tally.Sort(top)
			}
			return writeCounts(cmd.OutOrStdout(), rows, tally.Total())
		},
	}

	cmd.Flags().StringVarP(&since, "since", "s", "", "only count actions since a duration ago (e.g. 24h) or an RFC3339 time")
	cmd.Flags().IntVar(&top, "top", 0, "show only the n most frequent kinds")
	return cmd
}

func newClearCmd() *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Removes recorded actions older than a cutoff",
		Long:  "Removes every recorded action older than --before. Without --before the whole journal is cleared.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			c := clock.Real{}
			logger := observability.GetLogger()

			cutoff := c.Now()
			if before != "" {
				if cutoff, err = parseCutoff(before, cutoff); err != nil {
					return fmt.Errorf("invalid --before: %w", err)
				}
			}

			env, err := openJournal(ctx, cfg, c, logger)
			if err != nil {
				return err
			}
			defer env.Close()

			total := env.recorder.Count()
			kept, err := env.recorder.Clear(ctx, cutoff.UnixMilli())
			if err != nil {
				return fmt.Errorf("failed to clear journal: %w", err)
			}
			removed := total - kept.Len()
			logger.Info("Journal cleared", zap.Int("removed", removed), zap.Int("kept", kept.Len()), zap.Time("cutoff", cutoff))
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d action(s), %d kept.\n", removed, kept.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&before, "before", "b", "", "remove actions older than a duration ago (e.g. 720h) or an RFC3339 time")
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xkilldash9x/cadence/internal/automator"
	"github.com/xkilldash9x/cadence/internal/config"
	"github.com/xkilldash9x/cadence/internal/observability"
	"github.com/xkilldash9x/cadence/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Shows or changes the persisted pacing settings",
		Long: fmt.Sprintf("Shows or changes the persisted pacing settings.\n\nKeys: %s, %s (milliseconds) and %s (0 quiet, 1 normal, 2 debug).",
			store.KeyWaitTime, store.KeyRandomTime, store.KeyLogLevel),
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsGetCmd(), newSettingsSetCmd())
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, cfg *config.Config, fn func(store.Store) error) error {
	st, err := store.Open(ctx, cfg.Store(), observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store().Backend, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			observability.GetLogger().Warn("Error closing store", zap.Error(err))
		}
	}()
	return fn(st)
}

func loadSettings(cmd *cobra.Command) (automator.Settings, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return automator.Settings{}, err
	}
	var s automator.Settings
	err = withStore(cmd.Context(), cfg, func(st store.Store) error {
		s, err = automator.LoadSettings(cmd.Context(), st, automator.DefaultSettings(cfg.Automator()))
		return err
	})
	return s, err
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Prints every setting as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			return enc.Close()
		},
	}
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get <key>",
		Short:     "Prints one setting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: automator.SettingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			var v int
			switch args[0] {
			case store.KeyWaitTime:
				v = s.WaitTime
			case store.KeyRandomTime:
				v = s.RandomTime
			case store.KeyLogLevel:
				v = s.LogLevel
			default:
				return &automator.ValidationError{Reason: fmt.Sprintf("unknown setting %q", args[0])}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Persists one setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: automator.SettingKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("value %q is not an integer", args[1])
			}
			err = withStore(cmd.Context(), cfg, func(st store.Store) error {
				return automator.SaveSetting(cmd.Context(), st, args[0], value)
			})
			if err != nil {
				return err
			}
			observability.GetLogger().Info("Setting saved", zap.String("key", args[0]), zap.Int("value", value))
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", args[0], value)
			return nil
		},
	}
}

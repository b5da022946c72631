package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AngelGarcia/Mistery/internal/game"
	"github.com/AngelGarcia/Mistery/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options are the command-line settings shared by every subcommand. Session
// and store settings come from the environment (see internal/config).
type Options struct {
	envFile string
	timeout time.Duration
	verbose bool
}

func (o *Options) validate() error {
	if o.timeout <= 0 {
		return fmt.Errorf("invalid timeout (must be positive): %s", o.timeout)
	}
	return nil
}

func newCmd(opts *Options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MISTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "mistery",
		Short:   "Operate \"Who Wrote It?\" and \"Two Truths One Lie\" sessions.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before the environment (env: MISTERY_ENV_FILE)")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "deadline for one-shot commands (env: MISTERY_TIMEOUT)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level (env: MISTERY_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newMigrateCmd(opts),
		newInspectCmd(opts),
		newWatchCmd(opts),
		newCancelCmd(opts),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mistery v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newMigrateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func newInspectCmd(opts *Options) *cobra.Command {
	var player, client string
	cmd := &cobra.Command{
		Use:   "inspect <session>",
		Short: "Print a session as a player (or a spectator) sees it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if player == "" && client != "" {
				g, _, err := a.svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				p, ok, err := a.ids.Resolve(ctx, client, g)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("client %s is not bound to a player of %s", client, args[0])
				}
				player = p.ID
			}

			view, err := a.svc.View(ctx, args[0], player)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "player id to project the session for")
	cmd.Flags().StringVar(&client, "client", "", "project the session for the player this client id is bound to")
	return cmd
}

func newWatchCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session>",
		Short: "Stream committed changes of a session until it ends or you interrupt.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ended := make(chan error, 1)
			unsubscribe, err := a.svc.Subscribe(ctx, args[0],
				func(u game.Update) {
					_ = printJSON(cmd, watchLine{
						Revision:  u.Revision,
						Phase:     phaseOf(u),
						Cancelled: u.Cancelled,
						Events:    u.Events,
					})
					if u.Cancelled {
						ended <- nil
					}
				},
				func(err error) { ended <- err },
			)
			if err != nil {
				return err
			}
			defer unsubscribe()

			select {
			case err := <-ended:
				return err
			case <-ctx.Done():
				return nil
			}
		},
	}
}

func newCancelCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session> <host-player-id>",
		Short: "Delete a session on behalf of its host.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.CancelSession(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s cancelled\n", args[0])
			return nil
		},
	}
}

type watchLine struct {
	Revision  int64            `json:"revision"`
	Phase     string           `json:"phase,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Events    []game.GameEvent `json:"events,omitempty"`
}

func phaseOf(u game.Update) string {
	if u.Game == nil {
		return ""
	}
	return string(u.Game.Phase)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package cli is the pinsync command line. Every command except serve
// opens the configured runtime, performs one intent and exits.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/config"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/version"
)

// RuntimeFactory opens the wired runtime. serving is true for the
// long-running server, which logs at the configured level.
type RuntimeFactory func(ctx context.Context, serving bool) (*app.Runtime, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Runtime RuntimeFactory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	opts.Runtime = defaultRuntime(opts)
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinsync",
		Short: "Offline mirror of a Pinboard account",
		Long: `pinsync keeps a local copy of your Pinboard bookmarks in sync with the
remote account. Changes made locally are pushed right away; a full sync
pulls everything else, at most once per rate limit interval.

Configuration comes from PINSYNC_* environment variables.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at the configured level instead of warn")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewPrefsCommand(opts))

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		return ExitFailure
	}
	return ExitSuccess
}

func defaultRuntime(opts *RootOptions) RuntimeFactory {
	return func(ctx context.Context, serving bool) (*app.Runtime, error) {
		cfg, err := config.SafeLoad()
		if err != nil {
			return nil, err
		}

		level := "warn"
		if serving || opts.Verbose {
			level = cfg.LogLevel
		}
		return app.NewRuntime(ctx, cfg, logger.New(level, cfg.PrettyLog))
	}
}

// withRuntime opens the runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, opts *RootOptions, fn func(rt *app.Runtime) error) error {
	rt, err := opts.Runtime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the full remote listing",
		Long: `Pull the full remote listing and reconcile the local mirror.

Nothing is fetched when the last full sync is more recent than the
rate limit interval (PINSYNC_SYNC_RATE_LIMIT).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				ctx := cmd.Context()
				loggedIn, err := rt.Account.LoggedIn(ctx)
				if err != nil {
					return err
				}
				if !loggedIn {
					return domain.ErrUnauthorized
				}

				before := rt.Prefs.LastFullSync()
				if err := rt.Engine.Sync().Wait(ctx); err != nil {
					return err
				}
				after := rt.Prefs.LastFullSync()
				n, err := countBookmarks(ctx, rt.Store)
				if err != nil {
					return err
				}

				fetched := after.After(before)
				msg := "synced, " + plural(n, "bookmark")
				if !fetched {
					msg = "already up to date, last full sync " + formatTime(after)
				}
				return newPrinter(cmd, rootOpts).Done(msg, map[string]any{
					"fetched":        fetched,
					"bookmarks":      n,
					"last_full_sync": formatTime(after),
				})
			})
		},
	}
}

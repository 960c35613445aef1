package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sync scheduler",
		Long: `Run the HTTP API and the background sync scheduler until interrupted.

SIGHUP triggers an immediate sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.Runtime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.Close()
			return app.New(rt).Run(cmd.Context())
		},
	}
}

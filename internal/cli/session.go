package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

type loginOptions struct {
	password      string
	passwordStdin bool
	noWait        bool
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and run the initial full sync",
		Long: `Exchange the account password for an API token and store the session.

The password is read from --password, from the first line of stdin with
--password-stdin, or prompted for. It is never stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				return runLogin(cmd, rootOpts, opts, rt, args[0])
			})
		},
	}
	cmd.Flags().StringVar(&opts.password, "password", "", "account password (visible in process lists)")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "do not wait for the initial sync")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func runLogin(cmd *cobra.Command, rootOpts *RootOptions, opts *loginOptions, rt *app.Runtime, username string) error {
	p := newPrinter(cmd, rootOpts)
	ctx := cmd.Context()

	password := opts.password
	if password == "" {
		if !opts.passwordStdin {
			_, _ = fmt.Fprint(p.Err, "Password: ")
		}
		var err error
		if password, err = readLine(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}
	if password == "" {
		return errors.New("empty password")
	}

	task, err := rt.Account.LogIn(ctx, username, password)
	if err != nil {
		return err
	}

	result := map[string]any{"username": username, "sync_id": task.ID()}
	if !opts.noWait {
		if err := task.Wait(ctx); err != nil {
			p.Warn("logged in, but the initial sync failed: %v", err)
		} else {
			n, err := countBookmarks(ctx, rt.Store)
			if err != nil {
				return err
			}
			result["bookmarks"] = n
		}
	}
	return p.Done("logged in as "+username, result)
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local mirror and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				if err := rt.Account.LogOut(cmd.Context()); err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).Done("logged out", nil)
			})
		},
	}
}

type statusView struct {
	LoggedIn     bool   `json:"logged_in"`
	Username     string `json:"username,omitempty"`
	Bookmarks    int    `json:"bookmarks"`
	LastFullSync string `json:"last_full_sync"`
	Backend      string `json:"store"`
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and the local mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				ctx := cmd.Context()
				name, err := rt.Account.Username(ctx)
				if err != nil {
					return err
				}
				n, err := countBookmarks(ctx, rt.Store)
				if err != nil {
					return err
				}

				v := statusView{
					LoggedIn:     name != "",
					Username:     name,
					Bookmarks:    n,
					LastFullSync: formatTime(rt.Prefs.LastFullSync()),
					Backend:      rt.Config.StoreBackend,
				}
				p := newPrinter(cmd, rootOpts)
				if p.json() {
					return p.Done("", v)
				}
				account := faint.Sprint("logged out")
				if v.LoggedIn {
					account = green.Sprint(v.Username)
				}
				_, err = fmt.Fprintf(p.Out, "account:    %s\nbookmarks:  %d\nlast sync:  %s\nstore:      %s\n",
					account, v.Bookmarks, v.LastFullSync, v.Backend)
				return err
			})
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func countBookmarks(ctx context.Context, s store.Store) (int, error) {
	all, err := s.List(ctx, domain.Filter{})
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

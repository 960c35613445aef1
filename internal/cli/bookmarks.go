package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
)

// bookmarkFlags are the editable fields shared by add and edit.
type bookmarkFlags struct {
	title       string
	description string
	tags        string
	unread      bool
	private     bool
}

func (f *bookmarkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "bookmark title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "longer description")
	cmd.Flags().StringVar(&f.tags, "tags", "", "space separated tags")
	cmd.Flags().BoolVar(&f.unread, "unread", false, "mark as unread")
	cmd.Flags().BoolVar(&f.private, "private", false, "hide from the public profile")
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		query   string
		unread  bool
		private bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List local bookmarks, newest first",
		Long: `List local bookmarks, newest first.

--query matches title, url and description, ignoring case and accents.
--unread and --private only filter when given, so --unread=false lists
bookmarks already read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := domain.Filter{Text: query}
			if cmd.Flags().Changed("unread") {
				f.Unread = &unread
			}
			if cmd.Flags().Changed("private") {
				f.Private = &private
			}

			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				bs, err := rt.Store.List(cmd.Context(), f)
				if err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).Bookmarks(bs)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "text to search for")
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread (or, with =false, only read) bookmarks")
	cmd.Flags().BoolVar(&private, "private", false, "only private (or, with =false, only public) bookmarks")
	return cmd
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &bookmarkFlags{}
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a bookmark, or replace the one with the same url",
		Long: `Add a bookmark, or replace the one with the same url.

Without --unread or --private the default_unread and default_private
preferences apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateURL(args[0]); err != nil {
				return err
			}
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				prefs := rt.Prefs.Preferences()
				nb := engine.NewBookmark{
					URL:         args[0],
					Title:       flags.title,
					Description: flags.description,
					Tags:        flags.tags,
					Unread:      prefs.DefaultUnread,
					Private:     prefs.DefaultPrivate,
				}
				if cmd.Flags().Changed("unread") {
					nb.Unread = flags.unread
				}
				if cmd.Flags().Changed("private") {
					nb.Private = flags.private
				}

				if err := rt.Engine.Add(nb).Wait(cmd.Context()); err != nil {
					return err
				}
				b, err := rt.Store.Get(cmd.Context(), nb.URL)
				if err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).Done("added "+b.URL, b)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &bookmarkFlags{}
	cmd := &cobra.Command{
		Use:   "edit <url>",
		Short: "Change fields of an existing bookmark",
		Long:  "Change fields of an existing bookmark. Only the flags given are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := flags.patch(cmd)
			if patch.Empty() {
				return fmt.Errorf("nothing to change: pass at least one of --title, --description, --tags, --unread, --private")
			}

			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				ctx := cmd.Context()
				current, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if err := rt.Engine.Edit(*current, patch).Wait(ctx); err != nil {
					return err
				}
				b, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).Done("updated "+b.URL, b)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (f *bookmarkFlags) patch(cmd *cobra.Command) domain.Patch {
	var p domain.Patch
	if cmd.Flags().Changed("title") {
		p.Title = &f.title
	}
	if cmd.Flags().Changed("description") {
		p.Description = &f.description
	}
	if cmd.Flags().Changed("tags") {
		p.Tags = &f.tags
	}
	if cmd.Flags().Changed("unread") {
		p.Unread = &f.unread
	}
	if cmd.Flags().Changed("private") {
		p.Private = &f.private
	}
	return p
}

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <url>",
		Aliases: []string{"rm"},
		Short:   "Delete a bookmark remotely and locally",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				ctx := cmd.Context()
				current, err := rt.Store.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if err := rt.Engine.Delete(*current).Wait(ctx); err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).Done("deleted "+current.URL, map[string]string{"url": current.URL})
			})
		},
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid url %q", domain.ErrInvalidBookmark, raw)
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/settings"
)

// prefKeys maps the preference names accepted by `prefs set` onto fields.
var prefKeys = map[string]func(p *settings.Preferences) *bool{
	"open_externally": func(p *settings.Preferences) *bool { return &p.OpenExternally },
	"use_reader_view": func(p *settings.Preferences) *bool { return &p.UseReaderView },
	"default_unread":  func(p *settings.Preferences) *bool { return &p.DefaultUnread },
	"default_private": func(p *settings.Preferences) *bool { return &p.DefaultPrivate },
}

var prefOrder = []string{"open_externally", "use_reader_view", "default_unread", "default_private"}

func NewPrefsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				return printPrefs(cmd, rootOpts, rt.Prefs.Preferences())
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <key> <true|false>",
		Short:     "Change one preference",
		Args:      cobra.ExactArgs(2),
		ValidArgs: prefOrder,
		RunE: func(cmd *cobra.Command, args []string) error {
			field, ok := prefKeys[args[0]]
			if !ok {
				return fmt.Errorf("unknown preference %q: must be one of %v", args[0], prefOrder)
			}
			v, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q for %s: want true or false", args[1], args[0])
			}

			return withRuntime(cmd, rootOpts, func(rt *app.Runtime) error {
				prefs := rt.Prefs.Preferences()
				*field(&prefs) = v
				if err := rt.Prefs.SetPreferences(prefs); err != nil {
					return err
				}
				return printPrefs(cmd, rootOpts, prefs)
			})
		},
	})
	return cmd
}

func printPrefs(cmd *cobra.Command, rootOpts *RootOptions, prefs settings.Preferences) error {
	p := newPrinter(cmd, rootOpts)
	if p.json() {
		return p.Done("", prefs)
	}
	for _, key := range prefOrder {
		v := *prefKeys[key](&prefs)
		value := faint.Sprint("false")
		if v {
			value = green.Sprint("true")
		}
		if _, err := fmt.Fprintf(p.Out, "%-16s %s\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

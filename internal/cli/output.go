package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

var (
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// CLIResponse is the JSON envelope of every command in json format.
type CLIResponse struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Printer writes command results in the selected format.
type Printer struct {
	Format string
	Out    io.Writer
	Err    io.Writer
}

func newPrinter(cmd *cobra.Command, opts *RootOptions) *Printer {
	return &Printer{Format: opts.Format, Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
}

func (p *Printer) json() bool { return p.Format == "json" }

// Done reports a completed intent. data is only rendered in json format.
func (p *Printer) Done(msg string, data any) error {
	if p.json() {
		return json.NewEncoder(p.Out).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := green.Fprintf(p.Out, "✓ %s\n", msg)
	return err
}

// Warn goes to stderr so it never mixes with json output.
func (p *Printer) Warn(format string, args ...any) {
	_, _ = yellow.Fprintf(p.Err, "! "+format+"\n", args...)
}

func (p *Printer) Bookmarks(bs []*domain.Bookmark) error {
	if p.json() {
		return json.NewEncoder(p.Out).Encode(CLIResponse{Status: "ok", Data: bs})
	}
	if len(bs) == 0 {
		_, err := faint.Fprintln(p.Out, "no bookmarks")
		return err
	}
	for _, b := range bs {
		if err := p.bookmark(b); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) bookmark(b *domain.Bookmark) error {
	title := b.Title
	if title == "" {
		title = b.URL
	}
	if _, err := bold.Fprintln(p.Out, title); err != nil {
		return err
	}

	var flags []string
	if b.Unread {
		flags = append(flags, "unread")
	}
	if b.Private {
		flags = append(flags, "private")
	}
	if !b.Fingerprint.IsConfirmed() {
		flags = append(flags, "pending")
	}

	line := "  " + cyan.Sprint(b.URL)
	if len(flags) > 0 {
		line += " " + yellow.Sprintf("[%s]", strings.Join(flags, ","))
	}
	if b.Tags != "" {
		line += " " + faint.Sprintf("#%s", strings.ReplaceAll(b.Tags, " ", " #"))
	}
	if _, err := fmt.Fprintln(p.Out, line); err != nil {
		return err
	}
	if b.Description != "" {
		if _, err := fmt.Fprintf(p.Out, "  %s\n", b.Description); err != nil {
			return err
		}
	}
	return nil
}

func printError(w io.Writer, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		msg += " (run `pinsync login`)"
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrPendingOperations):
		msg += " (another operation is running, retry shortly)"
	}
	_, _ = red.Fprintf(w, "Error: %s\n", msg)
}

func formatTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

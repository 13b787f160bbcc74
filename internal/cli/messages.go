package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/store"
	"github.com/roach88/palaver/internal/syncer"
)

// MessagesOptions holds flags for the messages command.
type MessagesOptions struct {
	*RootOptions
	Database string
	Channel  string
	Limit    int
	Before   int64
}

// MessageRow is one visible message in command output.
type MessageRow struct {
	ID      string   `json:"id"`
	Sender  string   `json:"sender"`
	Text    string   `json:"text"`
	SentAt  int64    `json:"sent_at"`
	Edited  bool     `json:"edited,omitempty"`
	Parents []string `json:"parents,omitempty"`
}

// NewMessagesCommand creates the messages command.
func NewMessagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MessagesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List the currently-visible messages of a channel",
		Long: `List the newest currently-visible messages of a channel from the
cache, ascending by creation time, with sender-validated edits and
deletes applied. Paginate older history with --before (exclusive unix
millisecond bound).

Examples:
  palaver messages --db ./palaver.db --channel dev
  palaver messages --db ./palaver.db --channel dev --limit 5 --before 1700000000000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessages(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "channel id (required)")
	_ = cmd.MarkFlagRequired("channel")
	cmd.Flags().IntVar(&opts.Limit, "limit", 25, "maximum messages to return")
	cmd.Flags().Int64Var(&opts.Before, "before", 0, "exclusive upper bound, unix milliseconds")

	return cmd
}

func runMessages(opts *MessagesOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()

	svc := syncer.New(st, opts.Logger())
	visible, err := svc.VisibleMessages(ctx, opts.Channel, opts.Limit, opts.Before)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query messages", err)
	}

	rows := make([]MessageRow, 0, len(visible))
	for _, m := range visible {
		rows = append(rows, MessageRow{
			ID:      m.ID,
			Sender:  m.Sender,
			Text:    m.Text,
			SentAt:  m.SentAt,
			Edited:  m.Edited,
			Parents: m.Parents,
		})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(rows, func(w io.Writer) { renderMessages(w, rows) })
}

func renderMessages(w io.Writer, rows []MessageRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no visible messages")
		return
	}
	for _, r := range rows {
		ts := time.UnixMilli(r.SentAt).UTC().Format(time.RFC3339)
		var marks []string
		if r.Edited {
			marks = append(marks, "edited")
		}
		if len(r.Parents) > 0 {
			marks = append(marks, fmt.Sprintf("reply to %s", shortIDs(r.Parents)))
		}
		suffix := ""
		if len(marks) > 0 {
			suffix = fmt.Sprintf(" (%s)", strings.Join(marks, ", "))
		}
		fmt.Fprintf(w, "[%s] %s %s: %s%s\n", ts, event.ShortID(r.ID), r.Sender, r.Text, suffix)
	}
}

func shortIDs(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = event.ShortID(id)
	}
	return strings.Join(out, ", ")
}

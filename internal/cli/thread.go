package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/store"
	"github.com/roach88/palaver/internal/syncer"
)

// ThreadOptions holds flags for the thread command.
type ThreadOptions struct {
	*RootOptions
	Database string
	Message  string
}

// ThreadResult is the thread command output.
type ThreadResult struct {
	Ancestors   []ThreadRow         `json:"ancestors"`
	Message     ThreadRow           `json:"message"`
	Descendants []ThreadRow         `json:"descendants"`
	ParentMap   map[string][]string `json:"parent_map"`
}

// ThreadRow is one message in a thread listing.
type ThreadRow struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	Text          string `json:"text"`
	SentAt        int64  `json:"sent_at"`
	SiblingParent bool   `json:"sibling_parent,omitempty"`
}

// NewThreadCommand creates the thread command.
func NewThreadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ThreadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Show the thread context around a message",
		Long: `Show the bounded ancestor/descendant context around one message,
including sibling parents (messages sharing a child with the focus).

Exit codes:
  0 - thread found
  1 - message id not stored
  2 - command error

Example:
  palaver thread --db ./palaver.db --message 4f1c…`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThread(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Message, "message", "", "focal message id (required)")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func runThread(opts *ThreadOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()

	svc := syncer.New(st, opts.Logger())
	tc, err := svc.ThreadContext(ctx, opts.Message)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query thread", err)
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if tc == nil {
		_ = formatter.Failure(fmt.Sprintf("message %s not found", opts.Message))
		return NewExitError(ExitFailure, "message not found")
	}

	result := ThreadResult{
		Message:   threadRow(tc.Message, false),
		ParentMap: tc.ParentMap,
	}
	for _, m := range tc.Ancestors {
		result.Ancestors = append(result.Ancestors, threadRow(m, false))
	}
	for _, m := range tc.Descendants {
		result.Descendants = append(result.Descendants, threadRow(m.StoredMessage, m.SiblingParent))
	}

	return formatter.Success(result, func(w io.Writer) { renderThread(w, result) })
}

func threadRow(m event.StoredMessage, sibling bool) ThreadRow {
	return ThreadRow{
		ID:            m.ID,
		Sender:        m.Sender,
		Text:          m.Text,
		SentAt:        m.SentAt,
		SiblingParent: sibling,
	}
}

func renderThread(w io.Writer, r ThreadResult) {
	for _, m := range r.Ancestors {
		fmt.Fprintf(w, "  %s %s: %s\n", event.ShortID(m.ID), m.Sender, m.Text)
	}
	fmt.Fprintf(w, "> %s %s: %s\n", event.ShortID(r.Message.ID), r.Message.Sender, r.Message.Text)
	for _, m := range r.Descendants {
		mark := " "
		if m.SiblingParent {
			mark = "~"
		}
		fmt.Fprintf(w, "  %s%s %s: %s\n", mark, event.ShortID(m.ID), m.Sender, m.Text)
	}
}

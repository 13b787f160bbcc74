package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/palaver/internal/codec"
	"github.com/roach88/palaver/internal/feed"
	"github.com/roach88/palaver/internal/replay"
	"github.com/roach88/palaver/internal/syncer"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	*RootOptions
	Feed  string
	Group string
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Emit the canonical state snapshot for a control feed",
		Long: `Fold a control feed and print the canonical snapshot wire bytes an
authorized member would broadcast to carry members past the transport's
forward-secrecy boundary. Archived channels are excluded; the bytes are
reproducible by any interoperating implementation.

Example:
  palaver snapshot --feed ./community.jsonl > snapshot.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Feed, "feed", "", "path to JSONL feed dump (required)")
	_ = cmd.MarkFlagRequired("feed")
	cmd.Flags().StringVar(&opts.Group, "group", "meta", "control group id within the feed")

	return cmd
}

func runSnapshot(opts *SnapshotOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	records, err := feed.NewFile(opts.Feed).ReadGroup(ctx, opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read feed", err)
	}
	st := replay.Fold(syncer.DecodeControlFeed(records, opts.Logger()))

	wire, err := codec.EncodeSnapshot(codec.BuildSnapshot(st))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode snapshot", err)
	}

	out := cmd.OutOrStdout()
	if _, err := out.Write(wire); err != nil {
		return err
	}
	_, err = io.WriteString(out, "\n")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

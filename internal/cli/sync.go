package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/palaver/internal/feed"
	"github.com/roach88/palaver/internal/store"
	"github.com/roach88/palaver/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Database  string
	Feed      string
	Community string
	Group     string
}

// SyncResult reports what one sync pass mirrored into the cache.
type SyncResult struct {
	Community string `json:"community"`
	Channels  int    `json:"channels"`
	Roles     int    `json:"roles"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fold a feed dump and mirror the result into the cache",
		Long: `Run one full sync pass: re-read the entire control feed, fold it into
community state, mirror that state into the cache in one transaction,
then ingest content rows for every channel group the state names.

Examples:
  palaver sync --db ./palaver.db --feed ./community.jsonl --community acme
  palaver sync --db ./palaver.db --feed ./community.jsonl --community acme --group meta`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to cache database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Feed, "feed", "", "path to JSONL feed dump (required)")
	_ = cmd.MarkFlagRequired("feed")
	cmd.Flags().StringVar(&opts.Community, "community", "", "community id for cache rows (required)")
	_ = cmd.MarkFlagRequired("community")
	cmd.Flags().StringVar(&opts.Group, "group", "meta", "control group id within the feed")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	defer st.Close()

	svc := syncer.New(st, opts.Logger())
	state, err := svc.Sync(ctx, feed.NewFile(opts.Feed), opts.Community, opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	result := SyncResult{
		Community: opts.Community,
		Channels:  len(state.Channels),
		Roles:     len(state.Roles),
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "synced %s: %d channels, %d roles\n",
			result.Community, result.Channels, result.Roles)
	})
}

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/palaver/internal/codec"
	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/feed"
	"github.com/roach88/palaver/internal/replay"
	"github.com/roach88/palaver/internal/syncer"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Feed  string
	Group string
}

// ReplayResult summarizes a folded community state.
type ReplayResult struct {
	CommunityName string   `json:"community_name"`
	Channels      []string `json:"channels"`
	Roles         int      `json:"roles"`
	Bans          int      `json:"bans"`
	Announcements int      `json:"announcements"`
	Digest        string   `json:"digest"`
	Deterministic bool     `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fold a control feed and verify determinism",
		Long: `Fold a community control feed into state, twice, and verify both
passes produce identical canonical bytes.

Exit codes:
  0 - replay succeeded and is deterministic
  1 - determinism verification failed
  2 - command error (feed not readable, etc.)

Examples:
  palaver replay --feed ./community.jsonl
  palaver replay --feed ./community.jsonl --group meta --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Feed, "feed", "", "path to JSONL feed dump (required)")
	_ = cmd.MarkFlagRequired("feed")
	cmd.Flags().StringVar(&opts.Group, "group", "meta", "control group id within the feed")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	log := opts.Logger()

	records, err := feed.NewFile(opts.Feed).ReadGroup(ctx, opts.Group)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read feed", err)
	}
	decoded := syncer.DecodeControlFeed(records, log)

	st := replay.Fold(decoded)
	first, err := codec.EncodeState(st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}
	second, err := codec.EncodeState(replay.Fold(decoded))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode state", err)
	}

	result := summarize(st)
	result.Digest = event.StateDigest(first)
	result.Deterministic = string(first) == string(second)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := formatter.Success(result, func(w io.Writer) { renderReplay(w, result) }); err != nil {
		return err
	}
	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay is not deterministic")
	}
	return nil
}

func summarize(st *event.CommunityState) ReplayResult {
	result := ReplayResult{
		Roles:         len(st.Roles),
		Bans:          len(st.BannedDIDs) + len(st.BannedInboxes),
		Announcements: len(st.Announcements),
	}
	if st.Config != nil {
		result.CommunityName = st.Config.Name
	}
	for id := range st.Channels {
		result.Channels = append(result.Channels, id)
	}
	sort.Strings(result.Channels)
	return result
}

func renderReplay(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "community: %s\n", r.CommunityName)
	fmt.Fprintf(w, "channels:  %d\n", len(r.Channels))
	for _, id := range r.Channels {
		fmt.Fprintf(w, "  - %s\n", id)
	}
	fmt.Fprintf(w, "roles:     %d\n", r.Roles)
	fmt.Fprintf(w, "bans:      %d\n", r.Bans)
	fmt.Fprintf(w, "announcements: %d\n", r.Announcements)
	fmt.Fprintf(w, "digest:    %s\n", r.Digest)
	fmt.Fprintf(w, "deterministic: %v\n", r.Deterministic)
}

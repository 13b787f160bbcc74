// Package syncer drives the engines against real feeds and the cache.
//
// All I/O lives here, outside the engine boundary: the syncer reads
// feeds, decodes payloads, invokes the pure folds, and owns every cache
// transaction. A full sync re-reads the entire control feed because the
// fold's authorization context is never persisted; applying a suffix
// against stale authorization would be unsound.
package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/palaver/internal/codec"
	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/feed"
	"github.com/roach88/palaver/internal/graph"
	"github.com/roach88/palaver/internal/replay"
	"github.com/roach88/palaver/internal/store"
)

// Service composes the replay and graph engines with a feed source and
// the cache store.
type Service struct {
	store *store.Store
	log   *slog.Logger
}

// New creates a Service. A nil logger discards output.
func New(st *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: st, log: log}
}

// DecodeControlFeed maps raw feed records onto replay records, skipping
// anything not decodable by the control schema. Skips are debug-level
// observations only; the feed is multi-writer and partially adversarial,
// so undecodable traffic is expected.
func DecodeControlFeed(records []feed.Record, log *slog.Logger) []replay.Record {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := make([]replay.Record, 0, len(records))
	for i, rec := range records {
		ev, ok := codec.DecodeControl(rec.Payload)
		if !ok {
			log.Debug("skipping undecodable control payload",
				"group", rec.GroupID, "index", i, "sender", rec.Sender)
			continue
		}
		out = append(out, replay.Record{
			Sender: rec.Sender,
			SentAt: rec.SentAt,
			Event:  ev,
		})
	}
	return out
}

// Replay folds the community's control group and returns the state
// without touching the cache.
func (s *Service) Replay(ctx context.Context, src feed.Source, metaGroupID string) (*event.CommunityState, error) {
	records, err := src.ReadGroup(ctx, metaGroupID)
	if err != nil {
		return nil, fmt.Errorf("read control feed: %w", err)
	}
	return replay.Fold(DecodeControlFeed(records, s.log)), nil
}

// Sync runs one full pass: fold the control feed, mirror the state, then
// ingest content rows for every channel group named by the state.
// Returns the freshly folded state.
func (s *Service) Sync(ctx context.Context, src feed.Source, communityID, metaGroupID string) (*event.CommunityState, error) {
	pass := uuid.Must(uuid.NewV7()).String()
	log := s.log.With("pass", pass, "community", communityID)

	st, err := s.Replay(ctx, src, metaGroupID)
	if err != nil {
		return nil, err
	}

	configJSON, err := configCanonical(st)
	if err != nil {
		return nil, fmt.Errorf("serialize config: %w", err)
	}
	if err := s.store.ApplyState(ctx, communityID, st, configJSON); err != nil {
		return nil, err
	}
	log.Info("mirrored community state",
		"channels", len(st.Channels), "roles", len(st.Roles))

	for _, ch := range st.Channels {
		if ch.GroupID == "" {
			continue
		}
		if err := s.ingestChannel(ctx, src, ch, log); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ingestChannel stores every decodable content row of one channel group.
// Inserts are idempotent, so re-ingesting a prefix-consistent feed is a
// no-op for rows already stored.
func (s *Service) ingestChannel(ctx context.Context, src feed.Source, ch *event.ChannelState, log *slog.Logger) error {
	records, err := src.ReadGroup(ctx, ch.GroupID)
	if err != nil {
		return fmt.Errorf("read channel feed %s: %w", ch.ID, err)
	}
	stored := 0
	for i, rec := range records {
		cm, ok := codec.DecodeContent(rec.Payload)
		if !ok {
			log.Debug("skipping undecodable content payload",
				"channel", ch.ID, "index", i, "sender", rec.Sender)
			continue
		}
		id := cm.ID
		if id == "" {
			id = event.MessageID(rec.GroupID, rec.Payload)
		}
		msg := event.StoredMessage{
			ID:        id,
			ChannelID: ch.ID,
			Sender:    rec.Sender,
			Text:      cm.Text,
			EditOf:    cm.EditOf,
			DeleteOf:  cm.DeleteOf,
			SentAt:    rec.SentAt,
			Raw:       rec.Payload,
		}
		if err := s.store.InsertMessage(ctx, msg); err != nil {
			return err
		}
		for _, parent := range cm.Parents {
			edge := event.ParentEdge{MessageID: id, ParentID: parent}
			if err := s.store.InsertParentEdge(ctx, edge); err != nil {
				return err
			}
		}
		stored++
	}
	log.Debug("ingested channel", "channel", ch.ID, "records", len(records), "stored", stored)
	return nil
}

// VisibleMessages answers the visibility query over the cache: the
// newest limit currently-visible messages of a channel, ascending, with
// before as an exclusive upper time bound (0 for none).
func (s *Service) VisibleMessages(ctx context.Context, channelID string, limit int, before int64) ([]event.VisibleMessage, error) {
	rows, err := s.store.RecentMessages(ctx, channelID, graph.FetchBound(limit), before)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ChannelEdges(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return graph.VisibleMessages(rows, edges, limit), nil
}

// ThreadContext answers the thread query over the cache. Returns nil
// (and no error) when the message id is unknown.
func (s *Service) ThreadContext(ctx context.Context, messageID string) (*event.ThreadContext, error) {
	focus, ok, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	rows, err := s.store.ChannelMessages(ctx, focus.ChannelID)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.ChannelEdges(ctx, focus.ChannelID)
	if err != nil {
		return nil, err
	}
	return graph.NewIndex(rows, edges).ThreadContext(messageID), nil
}

// configCanonical serializes the community config for the cache row.
func configCanonical(st *event.CommunityState) ([]byte, error) {
	if st.Config == nil {
		return []byte("{}"), nil
	}
	settings := st.Config.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return event.MarshalCanonical(map[string]any{
		"name":        st.Config.Name,
		"description": st.Config.Description,
		"settings":    settings,
	})
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/palaver/internal/event"
)

// ApplyState mirrors a folded CommunityState into the cache in a single
// transaction. A crash mid-pass therefore cannot leave roles or channels
// torn relative to the config row. Rows are upserts keyed by id; the
// cache never needs delete semantics for channels (archival is a flag),
// while the role set is replaced wholesale to track snapshot semantics.
func (s *Store) ApplyState(ctx context.Context, communityID string, st *event.CommunityState, configJSON []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply state: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	name, description := "", ""
	if st.Config != nil {
		name, description = st.Config.Name, st.Config.Description
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO communities (id, name, description, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			config = excluded.config
	`, communityID, name, description, string(configJSON)); err != nil {
		return fmt.Errorf("apply state: community: %w", err)
	}

	for id, ch := range st.Channels {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channels (id, community_id, group_id, name, description, category, permissions, archived)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				community_id = excluded.community_id,
				group_id = excluded.group_id,
				name = excluded.name,
				description = excluded.description,
				category = excluded.category,
				permissions = excluded.permissions,
				archived = excluded.archived
		`, id, communityID, ch.GroupID, ch.Name, ch.Description, ch.Category, string(ch.Permissions), boolInt(ch.Archived)); err != nil {
			return fmt.Errorf("apply state: channel %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE community_id = ?`, communityID); err != nil {
		return fmt.Errorf("apply state: clear roles: %w", err)
	}
	for did, role := range st.Roles {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roles (community_id, did, role) VALUES (?, ?, ?)
		`, communityID, did, role.String()); err != nil {
			return fmt.Errorf("apply state: role %s: %w", did, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply state: commit: %w", err)
	}
	return nil
}

// InsertMessage stores one content row. ON CONFLICT DO NOTHING makes
// re-ingesting the same feed idempotent: rows are immutable once stored.
func (s *Store) InsertMessage(ctx context.Context, m event.StoredMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, sender, text, edit_of, delete_of, sent_at, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.ID, m.ChannelID, m.Sender, m.Text, m.EditOf, m.DeleteOf, m.SentAt, m.Raw)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertParentEdge stores one reply edge. No existence check on the
// parent: edges routinely arrive before their parent row.
func (s *Store) InsertParentEdge(ctx context.Context, e event.ParentEdge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parent_edges (message_id, parent_id)
		VALUES (?, ?)
		ON CONFLICT(message_id, parent_id) DO NOTHING
	`, e.MessageID, e.ParentID)
	if err != nil {
		return fmt.Errorf("insert parent edge: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

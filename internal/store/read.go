package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/palaver/internal/event"
)

// RecentMessages returns up to fetchLimit rows of one channel, newest
// first by creation time within the bound, returned ascending. before is
// an exclusive upper bound in unix milliseconds; pass 0 for no bound.
//
// Ordering carries a binary id tiebreaker so identical timestamps read
// back deterministically.
func (s *Store) RecentMessages(ctx context.Context, channelID string, fetchLimit int, before int64) ([]event.StoredMessage, error) {
	if fetchLimit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, channel_id, sender, text, edit_of, delete_of, sent_at, raw
		FROM messages
		WHERE channel_id = ?`
	args := []any{channelID}
	if before > 0 {
		query += ` AND sent_at < ?`
		args = append(args, before)
	}
	query += `
		ORDER BY sent_at DESC, id COLLATE BINARY DESC
		LIMIT ?`
	args = append(args, fetchLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []event.StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse the newest-first read into ascending order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ChannelMessages returns every row of one channel, ascending.
func (s *Store) ChannelMessages(ctx context.Context, channelID string) ([]event.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, sender, text, edit_of, delete_of, sent_at, raw
		FROM messages
		WHERE channel_id = ?
		ORDER BY sent_at ASC, id COLLATE BINARY ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query channel messages: %w", err)
	}
	defer rows.Close()

	var out []event.StoredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel messages: %w", err)
	}
	return out, nil
}

// GetMessage returns one stored row by id. The second return is false
// when the id is unknown.
func (s *Store) GetMessage(ctx context.Context, id string) (event.StoredMessage, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel_id, sender, text, edit_of, delete_of, sent_at, raw
		FROM messages
		WHERE id = ?
	`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return event.StoredMessage{}, false, nil
	}
	if err != nil {
		return event.StoredMessage{}, false, err
	}
	return m, true, nil
}

// ChannelEdges returns the parent edges of every message stored in one
// channel, in insertion order.
func (s *Store) ChannelEdges(ctx context.Context, channelID string) ([]event.ParentEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pe.message_id, pe.parent_id
		FROM parent_edges pe
		JOIN messages m ON pe.message_id = m.id
		WHERE m.channel_id = ?
		ORDER BY pe.rowid ASC
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query parent edges: %w", err)
	}
	defer rows.Close()

	var out []event.ParentEdge
	for rows.Next() {
		var e event.ParentEdge
		if err := rows.Scan(&e.MessageID, &e.ParentID); err != nil {
			return nil, fmt.Errorf("scan parent edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parent edges: %w", err)
	}
	return out, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (event.StoredMessage, error) {
	var m event.StoredMessage
	var raw []byte
	if err := sc.Scan(&m.ID, &m.ChannelID, &m.Sender, &m.Text, &m.EditOf, &m.DeleteOf, &m.SentAt, &raw); err != nil {
		if err == sql.ErrNoRows {
			return event.StoredMessage{}, err
		}
		return event.StoredMessage{}, fmt.Errorf("scan message: %w", err)
	}
	m.Raw = raw
	return m, nil
}

// Package graph derives visible-message views and bounded thread
// contexts from already-stored message rows and parent edges.
//
// Both operations are pure, read-only queries: they accept immutable
// inputs and return freshly computed values. Missing referents are
// inert, cycles terminate, and all work is bounded, because the feed the
// rows came from is attacker-observable and partially attacker-controlled.
package graph

import (
	"sort"

	"github.com/roach88/palaver/internal/event"
)

// FetchBound returns the raw-row over-fetch bound for a visibility query:
// min(limit*3, limit+500). Channels dense with edit/delete control
// traffic need headroom beyond limit, but the bound keeps worst-case
// storage reads proportional to the request.
func FetchBound(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit*3 < limit+500 {
		return limit * 3
	}
	return limit + 500
}

// VisibleMessages resolves the currently-visible view over raw rows.
//
// Rows are expected to be the newest FetchBound(limit) rows of one
// channel; order is normalized internally. Edits and deletes only take
// effect when the tombstone's sender matches the target's original
// sender; among competing valid edits the strictly greatest timestamp
// wins, ties keeping the first seen. The result is the newest limit
// survivors, ascending by creation time.
func VisibleMessages(rows []event.StoredMessage, edges []event.ParentEdge, limit int) []event.VisibleMessage {
	if limit <= 0 || len(rows) == 0 {
		return nil
	}

	ordered := make([]event.StoredMessage, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SentAt != ordered[j].SentAt {
			return ordered[i].SentAt < ordered[j].SentAt
		}
		return ordered[i].ID < ordered[j].ID
	})

	byID := make(map[string]event.StoredMessage, len(ordered))
	for _, m := range ordered {
		byID[m.ID] = m
	}

	deleted := make(map[string]bool)
	edits := make(map[string]event.StoredMessage) // target id -> winning edit row
	for _, m := range ordered {
		if m.DeleteOf != "" {
			if target, ok := byID[m.DeleteOf]; ok && target.Sender == m.Sender {
				deleted[m.DeleteOf] = true
			}
			continue
		}
		if m.EditOf != "" {
			target, ok := byID[m.EditOf]
			if !ok || target.Sender != m.Sender {
				continue
			}
			if cur, ok := edits[m.EditOf]; !ok || m.SentAt > cur.SentAt {
				edits[m.EditOf] = m
			}
		}
	}

	parents := parentsByMessage(edges)

	visible := make([]event.VisibleMessage, 0, len(ordered))
	for _, m := range ordered {
		if m.IsControl() || deleted[m.ID] {
			continue
		}
		vm := event.VisibleMessage{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			Sender:    m.Sender,
			Text:      m.Text,
			SentAt:    m.SentAt,
			Parents:   parents[m.ID],
		}
		if e, ok := edits[m.ID]; ok {
			vm.Text = e.Text
			vm.Edited = true
		}
		visible = append(visible, vm)
	}

	if len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	return visible
}

// parentsByMessage groups the full edge set by child message id.
// Parent ids come from all stored edges, independent of visibility
// filtering, so a reply to a deleted message still shows its link.
func parentsByMessage(edges []event.ParentEdge) map[string][]string {
	if len(edges) == 0 {
		return nil
	}
	out := make(map[string][]string)
	for _, e := range edges {
		if e.MessageID == "" || e.ParentID == "" {
			continue
		}
		out[e.MessageID] = append(out[e.MessageID], e.ParentID)
	}
	return out
}

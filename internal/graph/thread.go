package graph

import (
	"sort"

	"github.com/roach88/palaver/internal/event"
)

// TraversalCap bounds how many nodes either BFS direction may visit.
// Parent graphs should be acyclic, but the feed is not validated, so a
// cycle or an adversarially deep chain must terminate here rather than
// hang the query.
const TraversalCap = 500

// Index is an arena of stored messages plus their parent/child edges,
// built once per query batch. Ids are keys into the arena, never
// pointers, so dangling edges are representable and simply invisible to
// traversal.
type Index struct {
	byID     map[string]event.StoredMessage
	parents  map[string][]string
	children map[string][]string
}

// NewIndex builds an Index over rows and edges.
func NewIndex(rows []event.StoredMessage, edges []event.ParentEdge) *Index {
	ix := &Index{
		byID:     make(map[string]event.StoredMessage, len(rows)),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
	for _, m := range rows {
		ix.byID[m.ID] = m
	}
	for _, e := range edges {
		if e.MessageID == "" || e.ParentID == "" {
			continue
		}
		ix.parents[e.MessageID] = append(ix.parents[e.MessageID], e.ParentID)
		ix.children[e.ParentID] = append(ix.children[e.ParentID], e.MessageID)
	}
	return ix
}

// ThreadContext assembles the bounded thread view around one message.
// Returns nil when the message is not stored.
func (ix *Index) ThreadContext(messageID string) *event.ThreadContext {
	focus, ok := ix.byID[messageID]
	if !ok {
		return nil
	}

	ancestors, ancestorSet := ix.walkAncestors(messageID)
	descendants := ix.walkDescendants(messageID, ancestorSet)

	tc := &event.ThreadContext{
		Ancestors:   ancestors,
		Message:     focus,
		Descendants: descendants,
	}
	tc.ParentMap = ix.buildParentMap(tc)
	return tc
}

// walkAncestors runs breadth-first up the parent edges, deduplicated via
// a visited set and capped at TraversalCap visited nodes. Returned
// ancestors are sorted ascending by time.
func (ix *Index) walkAncestors(messageID string) ([]event.StoredMessage, map[string]bool) {
	visited := map[string]bool{messageID: true}
	queue := append([]string(nil), ix.parents[messageID]...)
	var out []event.StoredMessage

	for len(queue) > 0 && len(visited) < TraversalCap {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		if m, ok := ix.byID[id]; ok {
			out = append(out, m)
		}
		// An unstored parent has no known parents of its own, but the
		// lookup stays uniform: edges only exist for stored child rows.
		queue = append(queue, ix.parents[id]...)
	}

	sortMessages(out)
	delete(visited, messageID)
	return out, visited
}

// walkDescendants runs breadth-first down the child edges with the same
// cap. For every descendant discovered, its other parents outside the
// ancestor/focus/descendant sets are appended as sibling-parent context
// entries, but their own children are not enqueued; sibling discovery
// must not expand into unrelated subgraphs.
func (ix *Index) walkDescendants(messageID string, ancestorSet map[string]bool) []event.ThreadMessage {
	visited := map[string]bool{messageID: true}
	descendantSet := make(map[string]bool)
	queue := append([]string(nil), ix.children[messageID]...)
	var out []event.ThreadMessage

	for len(queue) > 0 && len(visited) < TraversalCap {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		m, ok := ix.byID[id]
		if !ok {
			continue
		}
		descendantSet[id] = true
		out = append(out, event.ThreadMessage{StoredMessage: m})
		queue = append(queue, ix.children[id]...)

		for _, p := range ix.parents[id] {
			if p == messageID || ancestorSet[p] || descendantSet[p] || visited[p] {
				continue
			}
			visited[p] = true
			if pm, pok := ix.byID[p]; pok {
				out = append(out, event.ThreadMessage{StoredMessage: pm, SiblingParent: true})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SentAt != out[j].SentAt {
			return out[i].SentAt < out[j].SentAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// buildParentMap records, for each message in the assembled thread,
// which of its parents are also present in the thread.
func (ix *Index) buildParentMap(tc *event.ThreadContext) map[string][]string {
	present := make(map[string]bool, len(tc.Ancestors)+len(tc.Descendants)+1)
	present[tc.Message.ID] = true
	for _, m := range tc.Ancestors {
		present[m.ID] = true
	}
	for _, m := range tc.Descendants {
		present[m.ID] = true
	}

	out := make(map[string][]string, len(present))
	for id := range present {
		for _, p := range ix.parents[id] {
			if present[p] {
				out[id] = append(out[id], p)
			}
		}
	}
	return out
}

func sortMessages(ms []event.StoredMessage) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].SentAt != ms[j].SentAt {
			return ms[i].SentAt < ms[j].SentAt
		}
		return ms[i].ID < ms[j].ID
	})
}

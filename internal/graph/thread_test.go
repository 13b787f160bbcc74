package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palaver/internal/event"
	"github.com/roach88/palaver/internal/testutil"
)

func edge(msgID, parentID string) event.ParentEdge {
	return event.ParentEdge{MessageID: msgID, ParentID: parentID}
}

// diamond: m1 <- m2, m1 <- m3, {m2,m3} <- m4
func diamondIndex() *Index {
	rows := []event.StoredMessage{
		msg("m1", "alice", "root", 1000),
		msg("m2", "bob", "left", 2000),
		msg("m3", "carol", "right", 3000),
		msg("m4", "dave", "join", 4000),
	}
	edges := []event.ParentEdge{
		edge("m2", "m1"),
		edge("m3", "m1"),
		edge("m4", "m2"),
		edge("m4", "m3"),
	}
	return NewIndex(rows, edges)
}

func idsOf(ms []event.StoredMessage) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestThreadContext_DiamondAncestors(t *testing.T) {
	tc := diamondIndex().ThreadContext("m4")
	require.NotNil(t, tc)
	assert.Equal(t, []string{"m1", "m2", "m3"}, idsOf(tc.Ancestors), "ancestors ascending by time")
	assert.Equal(t, "m4", tc.Message.ID)
	assert.Empty(t, tc.Descendants)
}

func TestThreadContext_DiamondDescendants(t *testing.T) {
	tc := diamondIndex().ThreadContext("m1")
	require.NotNil(t, tc)
	assert.Empty(t, tc.Ancestors)
	got := make([]string, len(tc.Descendants))
	for i, d := range tc.Descendants {
		got[i] = d.ID
		assert.False(t, d.SiblingParent, "diamond members are real descendants")
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, got)
}

func TestThreadContext_ParentMap(t *testing.T) {
	tc := diamondIndex().ThreadContext("m4")
	require.NotNil(t, tc)
	assert.ElementsMatch(t, []string{"m2", "m3"}, tc.ParentMap["m4"])
	assert.Equal(t, []string{"m1"}, tc.ParentMap["m2"])
	assert.Equal(t, []string{"m1"}, tc.ParentMap["m3"])
	_, hasRoot := tc.ParentMap["m1"]
	assert.False(t, hasRoot, "root has no parents inside the thread")
}

func TestThreadContext_SiblingParents(t *testing.T) {
	// m1 <- child; other is the child's second parent, unrelated to m1.
	// other's own subtree must not be expanded.
	rows := []event.StoredMessage{
		msg("m1", "alice", "focus", 1000),
		msg("other", "bob", "sibling parent", 1500),
		msg("child", "carol", "shared child", 2000),
		msg("grandchild-of-other", "dave", "unrelated subtree", 2500),
	}
	edges := []event.ParentEdge{
		edge("child", "m1"),
		edge("child", "other"),
		edge("grandchild-of-other", "other"),
	}
	tc := NewIndex(rows, edges).ThreadContext("m1")
	require.NotNil(t, tc)

	byID := map[string]event.ThreadMessage{}
	for _, d := range tc.Descendants {
		byID[d.ID] = d
	}
	require.Contains(t, byID, "child")
	require.Contains(t, byID, "other")
	assert.False(t, byID["child"].SiblingParent)
	assert.True(t, byID["other"].SiblingParent)
	assert.NotContains(t, byID, "grandchild-of-other", "sibling parents are not expanded")

	assert.ElementsMatch(t, []string{"m1", "other"}, tc.ParentMap["child"])
}

func TestThreadContext_SiblingParentAlreadyAncestorExcluded(t *testing.T) {
	// m1 <- m2 <- m3 and m1 <- m3 directly: when m3 is discovered below
	// m2, its other parent m1 is the focus and must not reappear.
	rows := []event.StoredMessage{
		msg("m1", "alice", "root", 1000),
		msg("m2", "bob", "mid", 2000),
		msg("m3", "carol", "leaf", 3000),
	}
	edges := []event.ParentEdge{
		edge("m2", "m1"),
		edge("m3", "m2"),
		edge("m3", "m1"),
	}
	tc := NewIndex(rows, edges).ThreadContext("m1")
	require.NotNil(t, tc)
	got := make([]string, len(tc.Descendants))
	for i, d := range tc.Descendants {
		got[i] = d.ID
	}
	assert.Equal(t, []string{"m2", "m3"}, got)
}

func TestThreadContext_NotFound(t *testing.T) {
	assert.Nil(t, diamondIndex().ThreadContext("ghost"))
}

func TestThreadContext_MissingParentInvisible(t *testing.T) {
	rows := []event.StoredMessage{
		msg("m2", "bob", "orphan reply", 2000),
	}
	edges := []event.ParentEdge{edge("m2", "m1")} // m1 never arrived
	tc := NewIndex(rows, edges).ThreadContext("m2")
	require.NotNil(t, tc)
	assert.Empty(t, tc.Ancestors, "unstored parent is invisible to traversal")
	assert.Empty(t, tc.ParentMap["m2"])
}

func TestThreadContext_CycleTerminates(t *testing.T) {
	rows := []event.StoredMessage{
		msg("a", "alice", "a", 1000),
		msg("b", "bob", "b", 2000),
		msg("c", "carol", "c", 3000),
	}
	edges := []event.ParentEdge{
		edge("a", "c"), // cycle: a -> c -> b -> a
		edge("c", "b"),
		edge("b", "a"),
	}
	tc := NewIndex(rows, edges).ThreadContext("a")
	require.NotNil(t, tc)
	assert.LessOrEqual(t, len(tc.Ancestors), TraversalCap)
	assert.LessOrEqual(t, len(tc.Descendants), TraversalCap)
	assert.Equal(t, []string{"b", "c"}, idsOf(tc.Ancestors))
}

func TestThreadContext_DeepChainCapped(t *testing.T) {
	clock := testutil.NewClock(0, 1)
	ids := testutil.NewIDSequence("m")

	var rows []event.StoredMessage
	var edges []event.ParentEdge
	const depth = 1200
	var first, prev, last string
	for i := 0; i < depth; i++ {
		id := ids.Next()
		rows = append(rows, msg(id, "alice", "…", clock.Next()))
		if i == 0 {
			first = id
		} else {
			edges = append(edges, edge(id, prev))
		}
		prev = id
		last = id
	}
	tc := NewIndex(rows, edges).ThreadContext(last)
	require.NotNil(t, tc)
	assert.LessOrEqual(t, len(tc.Ancestors), TraversalCap)

	tc = NewIndex(rows, edges).ThreadContext(first)
	require.NotNil(t, tc)
	assert.LessOrEqual(t, len(tc.Descendants), TraversalCap)
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palaver/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func storedMsg(id, channel, sender, text string, sentAt int64) event.StoredMessage {
	return event.StoredMessage{
		ID:        id,
		ChannelID: channel,
		Sender:    sender,
		Text:      text,
		SentAt:    sentAt,
		Raw:       []byte(`{"type":"message"}`),
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertMessage(context.Background(), storedMsg("m1", "general", "alice", "hi", 1000)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	m, found, err := s.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hi", m.Text)
}

func TestApplyState_MirrorsAndReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := event.NewCommunityState()
	st.Config = &event.CommunityConfig{Name: "Palaver", Description: "first"}
	st.Channels["general"] = &event.ChannelState{
		ID: "general", Name: "General", GroupID: "grp-1", Permissions: event.PermissionOpen,
	}
	st.Roles["did:alice"] = event.RoleAdmin
	st.Roles["did:bob"] = event.RoleModerator
	require.NoError(t, s.ApplyState(ctx, "comm-1", st, []byte(`{"name":"Palaver"}`)))

	// Second pass: renamed community, archived channel, bob demoted away.
	st.Config.Name = "Palaver 2"
	st.Channels["general"].Archived = true
	delete(st.Roles, "did:bob")
	require.NoError(t, s.ApplyState(ctx, "comm-1", st, []byte(`{"name":"Palaver 2"}`)))

	var name string
	require.NoError(t, s.db.QueryRow(`SELECT name FROM communities WHERE id = ?`, "comm-1").Scan(&name))
	assert.Equal(t, "Palaver 2", name)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM communities`).Scan(&count))
	assert.Equal(t, 1, count, "upsert, not duplicate rows")

	var archived int
	require.NoError(t, s.db.QueryRow(`SELECT archived FROM channels WHERE id = ?`, "general").Scan(&archived))
	assert.Equal(t, 1, archived)

	rows, err := s.db.Query(`SELECT did, role FROM roles WHERE community_id = ? ORDER BY did`, "comm-1")
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var did, role string
		require.NoError(t, rows.Scan(&did, &role))
		got = append(got, did+"="+role)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"did:alice=admin"}, got, "role set is replaced wholesale")
}

func TestInsertMessage_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := storedMsg("m1", "general", "alice", "original", 1000)
	require.NoError(t, s.InsertMessage(ctx, m))

	m.Text = "mutated"
	require.NoError(t, s.InsertMessage(ctx, m))

	stored, found, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "original", stored.Text, "rows are immutable once stored")
}

func TestRecentMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMessage(ctx, storedMsg("m1", "general", "alice", "one", 1000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("m2", "general", "bob", "two", 2000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("m3", "general", "alice", "three", 3000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("x1", "random", "carol", "elsewhere", 1500)))

	out, err := s.RecentMessages(ctx, "general", 2, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m2", out[0].ID, "newest window, ascending order")
	assert.Equal(t, "m3", out[1].ID)

	out, err = s.RecentMessages(ctx, "general", 10, 3000)
	require.NoError(t, err)
	require.Len(t, out, 2, "before bound is exclusive")
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)

	out, err = s.RecentMessages(ctx, "general", 0, 0)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRecentMessages_TimestampTies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMessage(ctx, storedMsg("b", "general", "alice", "…", 1000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("a", "general", "bob", "…", 1000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("c", "general", "carol", "…", 1000)))

	out, err := s.RecentMessages(ctx, "general", 2, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID, "ties break on binary id order")
	assert.Equal(t, "c", out[1].ID)
}

func TestChannelMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMessage(ctx, storedMsg("m2", "general", "bob", "two", 2000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("m1", "general", "alice", "one", 1000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("x1", "random", "carol", "other", 500)))

	out, err := s.ChannelMessages(ctx, "general")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestGetMessage_Miss(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.GetMessage(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChannelEdges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMessage(ctx, storedMsg("m1", "general", "alice", "root", 1000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("m2", "general", "bob", "reply", 2000)))
	require.NoError(t, s.InsertMessage(ctx, storedMsg("x1", "random", "carol", "other", 1000)))

	require.NoError(t, s.InsertParentEdge(ctx, event.ParentEdge{MessageID: "m2", ParentID: "m1"}))
	require.NoError(t, s.InsertParentEdge(ctx, event.ParentEdge{MessageID: "m2", ParentID: "missing"}))
	require.NoError(t, s.InsertParentEdge(ctx, event.ParentEdge{MessageID: "x1", ParentID: "m1"}))
	// duplicate edge is a no-op
	require.NoError(t, s.InsertParentEdge(ctx, event.ParentEdge{MessageID: "m2", ParentID: "m1"}))

	out, err := s.ChannelEdges(ctx, "general")
	require.NoError(t, err)
	require.Len(t, out, 2, "edges filtered to the channel's stored messages")
	assert.Equal(t, event.ParentEdge{MessageID: "m2", ParentID: "m1"}, out[0])
	assert.Equal(t, event.ParentEdge{MessageID: "m2", ParentID: "missing"}, out[1], "dangling parents are kept")
}

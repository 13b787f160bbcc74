package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palaver/internal/event"
)

const (
	creator  = "inbox-creator"
	alice    = "inbox-alice"
	bob      = "inbox-bob"
	stranger = "inbox-stranger"
)

func configRec(sender, name string) Record {
	return Record{Sender: sender, SentAt: 1000, Event: event.CommunityConfig{Name: name}}
}

func roleRec(sender, did, inboxID string, role event.RoleLevel) Record {
	return Record{Sender: sender, SentAt: 2000, Event: event.RoleAssignment{DID: did, InboxID: inboxID, Role: role}}
}

func channelRec(sender, id, name string) Record {
	return Record{Sender: sender, SentAt: 3000, Event: event.ChannelCreated{
		ChannelID: id, Name: name, GroupID: "grp-" + id, Permissions: event.PermissionOpen,
	}}
}

func banRec(sender, did, inboxID string) Record {
	return Record{Sender: sender, SentAt: 4000, Event: event.ModerationAction{Action: event.ActionBan, DID: did, InboxID: inboxID}}
}

func unbanRec(sender, did, inboxID string) Record {
	return Record{Sender: sender, SentAt: 5000, Event: event.ModerationAction{Action: event.ActionUnban, DID: did, InboxID: inboxID}}
}

func TestFold_BootstrapFirstConfigWins(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		configRec(stranger, "Hijacked"),
	})
	require.NotNil(t, st.Config)
	assert.Equal(t, "Acme", st.Config.Name, "non-creator config update must be dropped")
}

func TestFold_BootstrapAcceptsAnySender(t *testing.T) {
	st := Fold([]Record{configRec(stranger, "First")})
	require.NotNil(t, st.Config)
	assert.Equal(t, "First", st.Config.Name)
}

func TestFold_SnapshotCannotBootstrap(t *testing.T) {
	snap := event.StateSnapshot{
		Config: event.SnapshotConfig{Name: "Fake"},
		Roles:  []event.SnapshotRole{{DID: "did:mallory", InboxID: stranger, Role: event.RoleOwner}},
	}
	st := Fold([]Record{
		{Sender: stranger, SentAt: 500, Event: snap},
		configRec(creator, "Real"),
	})
	require.NotNil(t, st.Config)
	assert.Equal(t, "Real", st.Config.Name)
	assert.Empty(t, st.Roles, "pre-bootstrap snapshot must leave no trace")
}

func TestFold_StrangerRoleAssignmentDropped(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(stranger, "did:bob", bob, event.RoleModerator),
	})
	_, exists := st.Roles["did:bob"]
	assert.False(t, exists, "role assigned by unauthorized sender must not stick")
	assert.Equal(t, event.RoleMember, st.RoleOf("did:bob"))
}

func TestFold_CreatorAssignsAdmin(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleAdmin),
	})
	assert.Equal(t, event.RoleAdmin, st.RoleOf("did:alice"))
	assert.Equal(t, alice, st.RoleInboxIDs["did:alice"])
}

func TestFold_AdminCreatesChannelMemberCannotArchive(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleAdmin),
		channelRec(alice, "dev", "#dev"),
		{Sender: bob, SentAt: 3500, Event: event.ChannelArchived{ChannelID: "dev"}},
	})
	ch, exists := st.Channels["dev"]
	require.True(t, exists)
	assert.False(t, ch.Archived, "member may not archive a channel")
}

func TestFold_HierarchyMonotonicity(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		did     string
		want    event.RoleLevel
	}{
		{
			name: "admin cannot grant owner",
			records: []Record{
				configRec(creator, "Acme"),
				roleRec(creator, "did:alice", alice, event.RoleAdmin),
				roleRec(alice, "did:bob", bob, event.RoleOwner),
			},
			did:  "did:bob",
			want: event.RoleMember,
		},
		{
			name: "admin cannot demote admin peer",
			records: []Record{
				configRec(creator, "Acme"),
				roleRec(creator, "did:alice", alice, event.RoleAdmin),
				roleRec(creator, "did:bob", bob, event.RoleAdmin),
				roleRec(alice, "did:bob", bob, event.RoleMember),
			},
			did:  "did:bob",
			want: event.RoleAdmin,
		},
		{
			name: "admin may grant moderator to member",
			records: []Record{
				configRec(creator, "Acme"),
				roleRec(creator, "did:alice", alice, event.RoleAdmin),
				roleRec(alice, "did:bob", bob, event.RoleModerator),
			},
			did:  "did:bob",
			want: event.RoleModerator,
		},
		{
			name: "creator may demote an admin",
			records: []Record{
				configRec(creator, "Acme"),
				roleRec(creator, "did:alice", alice, event.RoleAdmin),
				roleRec(creator, "did:alice", alice, event.RoleMember),
			},
			did:  "did:alice",
			want: event.RoleMember,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := Fold(tc.records)
			assert.Equal(t, tc.want, st.RoleOf(tc.did))
		})
	}
}

func TestFold_RoleAssignmentRejectsBlankTarget(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "   ", "", event.RoleAdmin),
	})
	assert.Empty(t, st.Roles)
}

func TestFold_BanGatePrecedence(t *testing.T) {
	base := []Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleAdmin),
		banRec(creator, "did:alice", alice),
	}

	attempts := []struct {
		name string
		rec  Record
	}{
		{"channel create", channelRec(alice, "evil", "#evil")},
		{"self unban", unbanRec(alice, "did:alice", alice)},
		{"config update", configRec(alice, "Taken")},
		{"role grant", roleRec(alice, "did:bob", bob, event.RoleModerator)},
	}
	for _, tc := range attempts {
		t.Run(tc.name, func(t *testing.T) {
			before := Fold(base)
			after := Fold(append(append([]Record{}, base...), tc.rec))
			assert.Equal(t, before, after, "banned sender must cause no state change")
		})
	}
}

func TestFold_BanGateExemptsCreator(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		// Creator banning themselves must not brick the community.
		{Sender: creator, SentAt: 1500, Event: event.ModerationAction{Action: event.ActionBan, InboxID: creator, DID: "did:creator"}},
		channelRec(creator, "dev", "#dev"),
	})
	_, exists := st.Channels["dev"]
	assert.True(t, exists, "creator acts through the ban gate")
}

func TestFold_BanUnbanRoundTrip(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleAdmin),
		banRec(creator, "did:x", "inbox-x"),
		channelRec("inbox-x", "evil", "#evil"),
		unbanRec(creator, "did:x", "inbox-x"),
		roleRec(creator, "did:x", "inbox-x", event.RoleAdmin),
		channelRec("inbox-x", "ok", "#ok"),
	})
	_, evil := st.Channels["evil"]
	_, ok := st.Channels["ok"]
	assert.False(t, evil, "banned sender's channel must be absent")
	assert.True(t, ok, "post-unban channel must be present")
	assert.False(t, st.Banned("inbox-x"))
	assert.False(t, st.Banned("did:x"))
}

func TestFold_ModeratorCannotBanPeerOrSuperior(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleModerator),
		roleRec(creator, "did:bob", bob, event.RoleAdmin),
		banRec(alice, "did:bob", bob),
	})
	assert.False(t, st.Banned(bob))
	assert.False(t, st.Banned("did:bob"))
}

func TestFold_ModeratorBansMember(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleModerator),
		banRec(alice, "did:x", "inbox-x"),
	})
	assert.True(t, st.Banned("inbox-x"))
	assert.True(t, st.Banned("did:x"))
}

func TestFold_OtherModerationKindsAreInert(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		{Sender: creator, SentAt: 2000, Event: event.ModerationAction{Action: "warn", DID: "did:x"}},
	})
	assert.False(t, st.Banned("did:x"))
}

func TestFold_AnnouncementRequiresAdmin(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		{Sender: creator, SentAt: 2000, Event: event.Announcement{Text: "welcome"}},
		{Sender: stranger, SentAt: 2500, Event: event.Announcement{Text: "spam"}},
	})
	require.Len(t, st.Announcements, 1)
	assert.Equal(t, "welcome", st.Announcements[0].Text)
	assert.Equal(t, creator, st.Announcements[0].Sender)
	assert.Equal(t, int64(2000), st.Announcements[0].SentAt)
}

func TestFold_ChannelUpdateUnknownChannelInert(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		{Sender: creator, SentAt: 2000, Event: event.ChannelUpdated{ChannelID: "ghost", Name: "#ghost"}},
	})
	assert.Empty(t, st.Channels)
}

func TestFold_ChannelUpdateMutatesExisting(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		channelRec(creator, "dev", "#dev"),
		{Sender: creator, SentAt: 3500, Event: event.ChannelUpdated{
			ChannelID: "dev", Name: "#development", Category: "eng", Permissions: event.PermissionModerated,
		}},
	})
	ch := st.Channels["dev"]
	require.NotNil(t, ch)
	assert.Equal(t, "#development", ch.Name)
	assert.Equal(t, "eng", ch.Category)
	assert.Equal(t, event.PermissionModerated, ch.Permissions)
	assert.Equal(t, "grp-dev", ch.GroupID, "group reference survives updates")
}

func snapshotRecord(sender string) Record {
	return Record{Sender: sender, SentAt: 9000, Event: event.StateSnapshot{
		Config: event.SnapshotConfig{Name: "Snapped", Description: "restored"},
		Channels: []event.SnapshotChannel{
			{ChannelID: "general", Name: "#general", GroupID: "grp-general", Permissions: event.PermissionOpen},
		},
		Roles: []event.SnapshotRole{
			{DID: "did:alice", InboxID: alice, Role: event.RoleAdmin},
			{DID: "did:carol", Role: event.RoleModerator},
		},
		Bans:           []string{"did:spam"},
		BannedInboxIDs: []string{"inbox-spam"},
	}}
}

func TestFold_SnapshotReplacesWholesale(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		channelRec(creator, "dev", "#dev"),
		roleRec(creator, "did:bob", bob, event.RoleAdmin),
		snapshotRecord(creator),
	})

	require.NotNil(t, st.Config)
	assert.Equal(t, "Snapped", st.Config.Name)
	assert.Len(t, st.Channels, 1)
	_, hasGeneral := st.Channels["general"]
	assert.True(t, hasGeneral)
	_, hasDev := st.Channels["dev"]
	assert.False(t, hasDev, "snapshot replaces the channel set")

	assert.Equal(t, event.RoleAdmin, st.RoleOf("did:alice"))
	assert.Equal(t, event.RoleModerator, st.RoleOf("did:carol"))
	assert.Equal(t, event.RoleMember, st.RoleOf("did:bob"), "pre-snapshot role replaced")
	assert.True(t, st.Banned("did:spam"))
	assert.True(t, st.Banned("inbox-spam"))
}

func TestFold_SnapshotRebuildsAuthorization(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		snapshotRecord(creator),
		// alice was granted admin via the snapshot role list, keyed by
		// her transport identity.
		channelRec(alice, "from-alice", "#from-alice"),
		// bob lost his pre-snapshot standing.
		channelRec(bob, "from-bob", "#from-bob"),
		// the creator keeps owner standing across the snapshot.
		channelRec(creator, "from-creator", "#from-creator"),
	})
	_, fromAlice := st.Channels["from-alice"]
	_, fromBob := st.Channels["from-bob"]
	_, fromCreator := st.Channels["from-creator"]
	assert.True(t, fromAlice)
	assert.False(t, fromBob)
	assert.True(t, fromCreator)
}

func TestFold_SnapshotRequiresAdmin(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		snapshotRecord(stranger),
	})
	assert.Equal(t, "Acme", st.Config.Name)
	assert.Empty(t, st.Channels)
}

func TestFold_SnapshotKeepsAnnouncements(t *testing.T) {
	st := Fold([]Record{
		configRec(creator, "Acme"),
		{Sender: creator, SentAt: 2000, Event: event.Announcement{Text: "hello"}},
		snapshotRecord(creator),
	})
	assert.Len(t, st.Announcements, 1)
}

func TestFold_DIDOnlyRoleCannotAuthorizeTransportSender(t *testing.T) {
	// A role granted to a DID with no transport id authorizes only the
	// DID key. A sender whose transport id differs textually can never
	// pass the lookup; long-standing feed behavior, preserved.
	st := Fold([]Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:carol", "", event.RoleAdmin),
		channelRec("inbox-carol", "dev", "#dev"),
	})
	assert.Equal(t, event.RoleAdmin, st.RoleOf("did:carol"))
	assert.Empty(t, st.Channels, "transport sender gains nothing from a DID-only grant")
}

func TestFold_Idempotence(t *testing.T) {
	records := []Record{
		configRec(creator, "Acme"),
		roleRec(creator, "did:alice", alice, event.RoleAdmin),
		channelRec(alice, "dev", "#dev"),
		banRec(creator, "did:spam", "inbox-spam"),
		{Sender: alice, SentAt: 6000, Event: event.Announcement{Text: "note"}},
		snapshotRecord(creator),
	}
	first := Fold(records)
	second := Fold(records)
	assert.Equal(t, first, second, "re-running the fold must yield identical state")
}

func TestFold_EmptySenderDropped(t *testing.T) {
	st := Fold([]Record{{Sender: "", SentAt: 1000, Event: event.CommunityConfig{Name: "Ghost"}}})
	assert.Nil(t, st.Config)
}

func TestFold_SettingsAreCopied(t *testing.T) {
	settings := map[string]any{"visibility": "private"}
	st := Fold([]Record{{Sender: creator, SentAt: 1000, Event: event.CommunityConfig{Name: "Acme", Settings: settings}}})
	settings["visibility"] = "public"
	assert.Equal(t, "private", st.Config.Settings["visibility"], "folded state must not alias input payloads")
}

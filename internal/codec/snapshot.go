package codec

import (
	"fmt"
	"sort"

	"github.com/roach88/palaver/internal/event"
)

// BuildSnapshot assembles a StateSnapshot from replayed state, suitable
// for an authorized member to re-broadcast past the transport's
// forward-secrecy boundary.
//
// Archived channels are excluded. Role entries carry the transport
// identity whenever one was observed, so a receiving replay can
// authorize post-snapshot events without assuming the DID doubles as
// the transport identity. All lists are sorted so the encoded bytes are
// a pure function of the state.
func BuildSnapshot(st *event.CommunityState) event.StateSnapshot {
	snap := event.StateSnapshot{
		Bans:           make([]string, 0, len(st.BannedDIDs)),
		BannedInboxIDs: make([]string, 0, len(st.BannedInboxes)),
	}
	if st.Config != nil {
		snap.Config = event.SnapshotConfig{
			Name:        st.Config.Name,
			Description: st.Config.Description,
			Settings:    st.Config.Settings,
		}
	}

	channelIDs := make([]string, 0, len(st.Channels))
	for id, ch := range st.Channels {
		if ch.Archived {
			continue
		}
		channelIDs = append(channelIDs, id)
	}
	sort.Strings(channelIDs)
	for _, id := range channelIDs {
		ch := st.Channels[id]
		snap.Channels = append(snap.Channels, event.SnapshotChannel{
			ChannelID:   ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			GroupID:     ch.GroupID,
			Category:    ch.Category,
			Permissions: ch.Permissions,
		})
	}

	dids := make([]string, 0, len(st.Roles))
	for did := range st.Roles {
		dids = append(dids, did)
	}
	sort.Strings(dids)
	for _, did := range dids {
		snap.Roles = append(snap.Roles, event.SnapshotRole{
			DID:     did,
			InboxID: st.RoleInboxIDs[did],
			Role:    st.Roles[did],
		})
	}

	for id := range st.BannedDIDs {
		snap.Bans = append(snap.Bans, id)
	}
	sort.Strings(snap.Bans)
	for id := range st.BannedInboxes {
		snap.BannedInboxIDs = append(snap.BannedInboxIDs, id)
	}
	sort.Strings(snap.BannedInboxIDs)

	return snap
}

// EncodeSnapshot serializes a snapshot to its canonical wire bytes.
// Reproducible byte-for-byte by any interoperating implementation:
// RFC 8785 canonical JSON over a fixed key set.
func EncodeSnapshot(snap event.StateSnapshot) ([]byte, error) {
	cfg := map[string]any{
		"name":        snap.Config.Name,
		"description": snap.Config.Description,
		"settings":    settingsMap(snap.Config.Settings),
	}

	channels := make([]any, 0, len(snap.Channels))
	for _, ch := range snap.Channels {
		entry := map[string]any{
			"channelId":   ch.ChannelID,
			"name":        ch.Name,
			"description": ch.Description,
			"xmtpGroupId": ch.GroupID,
			"category":    ch.Category,
			"permissions": string(ch.Permissions),
		}
		channels = append(channels, entry)
	}

	roles := make([]any, 0, len(snap.Roles))
	for _, r := range snap.Roles {
		entry := map[string]any{
			"did":  r.DID,
			"role": r.Role.String(),
		}
		if r.InboxID != "" {
			entry["inboxId"] = r.InboxID
		}
		roles = append(roles, entry)
	}

	wire := map[string]any{
		"type":           "state_snapshot",
		"config":         cfg,
		"channels":       channels,
		"roles":          roles,
		"bans":           stringList(snap.Bans),
		"bannedInboxIds": stringList(snap.BannedInboxIDs),
	}

	out, err := event.MarshalCanonical(wire)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// EncodeState serializes replayed state (as its snapshot projection plus
// announcements) to canonical bytes. Used for state digests and golden
// comparisons; not a wire format.
func EncodeState(st *event.CommunityState) ([]byte, error) {
	snapBytes, err := EncodeSnapshot(BuildSnapshot(st))
	if err != nil {
		return nil, err
	}
	anns := make([]any, 0, len(st.Announcements))
	for _, a := range st.Announcements {
		anns = append(anns, map[string]any{
			"text":   a.Text,
			"sender": a.Sender,
			"sentAt": a.SentAt,
		})
	}
	archived := make([]string, 0)
	for id, ch := range st.Channels {
		if ch.Archived {
			archived = append(archived, id)
		}
	}
	sort.Strings(archived)

	annBytes, err := event.MarshalCanonical(anns)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	archBytes, err := event.MarshalCanonical(stringList(archived))
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	out := make([]byte, 0, len(snapBytes)+len(annBytes)+len(archBytes)+64)
	out = append(out, `{"announcements":`...)
	out = append(out, annBytes...)
	out = append(out, `,"archivedChannels":`...)
	out = append(out, archBytes...)
	out = append(out, `,"snapshot":`...)
	out = append(out, snapBytes...)
	out = append(out, '}')
	return out, nil
}

// settingsMap normalizes nil settings to an empty object so encoded
// bytes do not depend on how the config was constructed.
func settingsMap(settings map[string]any) map[string]any {
	if settings == nil {
		return map[string]any{}
	}
	return settings
}

// stringList converts to []any for canonical marshaling, normalizing nil
// to an empty list.
func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

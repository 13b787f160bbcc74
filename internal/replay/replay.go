// Package replay folds a community's control-event feed into a
// CommunityState, enforcing the role hierarchy and bootstrap rules
// entirely client-side.
//
// The fold is pure and synchronous: input order is authoritative feed
// order, nothing is buffered or reordered, and every rejection path is an
// early return with no state change. Rejections are silent because the
// engine cannot distinguish "rejected" from "redundant no-op" and must
// not leak authorization decisions back onto the log.
//
// The authorization table lives in an ephemeral accumulator rebuilt from
// nothing on every pass. It is never persisted; a caller that wants fresh
// state re-reads the entire feed.
package replay

import (
	"strings"

	"github.com/roach88/palaver/internal/event"
)

// Record is one control-feed entry: a decoded event plus the transport
// identity of whoever wrote it. Sender identities are not trustworthy by
// themselves; authorization established during the fold is what counts.
type Record struct {
	Sender string
	SentAt int64 // unix milliseconds, delivery-side timestamp
	Event  event.ControlEvent
}

// authContext is the fold-local authorization accumulator.
//
// creator is set once, forever, from the sender of the first accepted
// CommunityConfig. senders maps a transport or stable identity to the
// role it was granted during this pass. Neither survives the fold.
type authContext struct {
	creator string
	senders map[string]event.RoleLevel
}

// Fold replays a control feed from scratch and returns the resulting
// state. Deterministic: the same records always produce the same state.
func Fold(records []Record) *event.CommunityState {
	st := event.NewCommunityState()
	auth := &authContext{senders: make(map[string]event.RoleLevel)}
	for _, rec := range records {
		step(st, auth, rec)
	}
	return st
}

// step applies one record. Every reject path returns without touching st.
func step(st *event.CommunityState, auth *authContext, rec Record) {
	sender := rec.Sender
	if sender == "" {
		return
	}

	// Ban gate, ahead of any type-specific handling. A banned sender
	// cannot do anything, including unbanning themselves. The creator is
	// exempt so a community cannot be bricked by banning its creator.
	if st.Banned(sender) && sender != auth.creator {
		return
	}

	switch ev := rec.Event.(type) {
	case event.CommunityConfig:
		applyConfig(st, auth, sender, ev)
	case event.ChannelCreated:
		applyChannelCreated(st, auth, sender, ev)
	case event.ChannelUpdated:
		applyChannelUpdated(st, auth, sender, ev)
	case event.ChannelArchived:
		applyChannelArchived(st, auth, sender, ev)
	case event.RoleAssignment:
		applyRoleAssignment(st, auth, sender, ev)
	case event.Announcement:
		applyAnnouncement(st, auth, sender, rec.SentAt, ev)
	case event.ModerationAction:
		applyModeration(st, auth, sender, ev)
	case event.StateSnapshot:
		applySnapshot(st, auth, sender, ev)
	}
}

// levelOf returns the authorized level of an identity, defaulting to
// member when the table has no entry.
func (a *authContext) levelOf(id string) event.RoleLevel {
	if r, ok := a.senders[id]; ok {
		return r
	}
	return event.RoleMember
}

// hasMinRole reports whether sender may perform an action requiring the
// given level. The creator always passes, regardless of the role table.
func (a *authContext) hasMinRole(sender string, required event.RoleLevel) bool {
	if a.creator != "" && sender == a.creator {
		return true
	}
	return a.levelOf(sender) >= required
}

// targetLevel looks up a target's current level, trying the transport
// identity first and falling back to the stable identity. Incoming
// sender identities are transport identities, so the transport key is
// the one that actually gates future events.
func (a *authContext) targetLevel(inboxID, did string) event.RoleLevel {
	if inboxID != "" {
		if r, ok := a.senders[inboxID]; ok {
			return r
		}
	}
	if did != "" {
		if r, ok := a.senders[did]; ok {
			return r
		}
	}
	return event.RoleMember
}

func applyConfig(st *event.CommunityState, auth *authContext, sender string, ev event.CommunityConfig) {
	if auth.creator == "" {
		// Bootstrap: the first config observed wins, whoever sent it.
		// Only CommunityConfig may bootstrap; a snapshot racing ahead of
		// it is dropped in applySnapshot.
		auth.creator = sender
		auth.senders[sender] = event.RoleOwner
		st.Config = cloneConfig(ev)
		return
	}
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	st.Config = cloneConfig(ev)
}

func applyChannelCreated(st *event.CommunityState, auth *authContext, sender string, ev event.ChannelCreated) {
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	id := strings.TrimSpace(ev.ChannelID)
	if id == "" {
		return
	}
	st.Channels[id] = &event.ChannelState{
		ID:          id,
		Name:        ev.Name,
		Description: ev.Description,
		Category:    ev.Category,
		GroupID:     ev.GroupID,
		Permissions: ev.Permissions,
	}
}

func applyChannelUpdated(st *event.CommunityState, auth *authContext, sender string, ev event.ChannelUpdated) {
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	ch, ok := st.Channels[strings.TrimSpace(ev.ChannelID)]
	if !ok {
		// Unknown channel: inert until the create event materializes.
		return
	}
	ch.Name = ev.Name
	ch.Description = ev.Description
	ch.Category = ev.Category
	ch.Permissions = ev.Permissions
}

func applyChannelArchived(st *event.CommunityState, auth *authContext, sender string, ev event.ChannelArchived) {
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	if ch, ok := st.Channels[strings.TrimSpace(ev.ChannelID)]; ok {
		ch.Archived = true
	}
}

func applyRoleAssignment(st *event.CommunityState, auth *authContext, sender string, ev event.RoleAssignment) {
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	if !ev.Role.Valid() {
		return
	}
	did := strings.TrimSpace(ev.DID)
	if did == "" {
		return
	}
	inboxID := strings.TrimSpace(ev.InboxID)

	// Hierarchy checks; the creator is exempt. A sender may neither grant
	// a role above its own level nor modify a peer or superior.
	if auth.creator == "" || sender != auth.creator {
		senderLevel := auth.levelOf(sender)
		if ev.Role > senderLevel {
			return
		}
		if auth.targetLevel(inboxID, did) >= senderLevel {
			return
		}
	}

	st.Roles[did] = ev.Role
	if inboxID != "" {
		st.RoleInboxIDs[did] = inboxID
	}
	// Authorize future events from this identity, keyed the way the feed
	// will name it: transport identity when known, stable id otherwise.
	// A did with no transport id that differs textually from any sender's
	// transport id can never authorize post-event; that dead-end is
	// long-standing feed behavior and is kept as is.
	if inboxID != "" {
		auth.senders[inboxID] = ev.Role
	} else {
		auth.senders[did] = ev.Role
	}
}

func applyAnnouncement(st *event.CommunityState, auth *authContext, sender string, sentAt int64, ev event.Announcement) {
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}
	st.Announcements = append(st.Announcements, event.AnnouncementEntry{
		Text:   ev.Text,
		Sender: sender,
		SentAt: sentAt,
	})
}

func applyModeration(st *event.CommunityState, auth *authContext, sender string, ev event.ModerationAction) {
	if !auth.hasMinRole(sender, event.RoleModerator) {
		return
	}
	did := strings.TrimSpace(ev.DID)
	inboxID := strings.TrimSpace(ev.InboxID)

	switch ev.Action {
	case event.ActionBan, event.ActionUnban:
		if did == "" && inboxID == "" {
			return
		}
		// A moderator cannot ban a peer or superior. Creator exempt.
		if auth.creator == "" || sender != auth.creator {
			if auth.targetLevel(inboxID, did) >= auth.levelOf(sender) {
				return
			}
		}
		if ev.Action == event.ActionBan {
			if did != "" {
				st.BannedDIDs[did] = struct{}{}
			}
			if inboxID != "" {
				st.BannedInboxes[inboxID] = struct{}{}
			}
		} else {
			delete(st.BannedDIDs, did)
			delete(st.BannedInboxes, inboxID)
		}
	default:
		// Other moderation kinds carry no replayed state.
	}
}

func applySnapshot(st *event.CommunityState, auth *authContext, sender string, ev event.StateSnapshot) {
	// A snapshot may never bootstrap a community. Without this, an
	// uninvited sender could claim creator status by winning a snapshot
	// race against the real config event.
	if auth.creator == "" {
		return
	}
	if !auth.hasMinRole(sender, event.RoleAdmin) {
		return
	}

	// Wholesale replacement of structure. Announcements are local history
	// and survive.
	st.Config = cloneConfig(event.CommunityConfig{
		Name:        ev.Config.Name,
		Description: ev.Config.Description,
		Settings:    ev.Config.Settings,
	})
	st.Channels = make(map[string]*event.ChannelState, len(ev.Channels))
	for _, ch := range ev.Channels {
		id := strings.TrimSpace(ch.ChannelID)
		if id == "" {
			continue
		}
		st.Channels[id] = &event.ChannelState{
			ID:          id,
			Name:        ch.Name,
			Description: ch.Description,
			Category:    ch.Category,
			GroupID:     ch.GroupID,
			Permissions: ch.Permissions,
		}
	}
	st.Roles = make(map[string]event.RoleLevel, len(ev.Roles))
	st.RoleInboxIDs = make(map[string]string)
	st.BannedDIDs = make(map[string]struct{}, len(ev.Bans))
	st.BannedInboxes = make(map[string]struct{}, len(ev.BannedInboxIDs))
	for _, b := range ev.Bans {
		if b != "" {
			st.BannedDIDs[b] = struct{}{}
		}
	}
	for _, b := range ev.BannedInboxIDs {
		if b != "" {
			st.BannedInboxes[b] = struct{}{}
		}
	}

	// Rebuild the authorization table from the snapshot's role list, then
	// re-seed the creator so post-snapshot authorization does not lose
	// the creator's elevated status.
	auth.senders = make(map[string]event.RoleLevel, len(ev.Roles)+1)
	for _, r := range ev.Roles {
		did := strings.TrimSpace(r.DID)
		if did == "" || !r.Role.Valid() {
			continue
		}
		st.Roles[did] = r.Role
		if r.InboxID != "" {
			st.RoleInboxIDs[did] = r.InboxID
			auth.senders[r.InboxID] = r.Role
		} else {
			auth.senders[did] = r.Role
		}
	}
	auth.senders[auth.creator] = event.RoleOwner
}

// cloneConfig copies a config event so folded state never aliases the
// caller's decoded payload.
func cloneConfig(ev event.CommunityConfig) *event.CommunityConfig {
	out := &event.CommunityConfig{
		Name:        ev.Name,
		Description: ev.Description,
	}
	if ev.Settings != nil {
		out.Settings = make(map[string]any, len(ev.Settings))
		for k, v := range ev.Settings {
			out.Settings[k] = v
		}
	}
	return out
}

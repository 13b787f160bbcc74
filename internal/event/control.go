package event

// ControlEvent is the sealed union of community control events.
//
// Only types in this package implement it. The marker method pattern
// prevents external implementations and keeps the replay fold's type
// switch exhaustive: adding a new event kind is a compile-time-visible
// change everywhere it must be handled.
type ControlEvent interface {
	controlEvent()
}

// CommunityConfig sets or replaces the community's configuration.
//
// The first CommunityConfig accepted while no creator is known bootstraps
// the community: its sender becomes the creator for the whole replay.
type CommunityConfig struct {
	Name        string
	Description string
	Settings    map[string]any
}

func (CommunityConfig) controlEvent() {}

// ChannelCreated announces a new channel backed by a transport group.
type ChannelCreated struct {
	ChannelID   string
	Name        string
	Description string
	Category    string
	GroupID     string // transport group carrying the channel's content feed
	Permissions PermissionMode
}

func (ChannelCreated) controlEvent() {}

// ChannelUpdated mutates the metadata of an existing channel.
type ChannelUpdated struct {
	ChannelID   string
	Name        string
	Description string
	Category    string
	Permissions PermissionMode
}

func (ChannelUpdated) controlEvent() {}

// ChannelArchived flags a channel as archived. Channels are never removed.
type ChannelArchived struct {
	ChannelID string
}

func (ChannelArchived) controlEvent() {}

// RoleAssignment grants a role to a target identity.
//
// The target is named by its stable identity (DID) and, when known, its
// transport identity (InboxID). Incoming senders are transport identities,
// so authorization lookups try InboxID first.
type RoleAssignment struct {
	DID     string
	InboxID string // optional
	Role    RoleLevel
}

func (RoleAssignment) controlEvent() {}

// Announcement appends a community-wide announcement.
type Announcement struct {
	Text string
}

func (Announcement) controlEvent() {}

// Moderation action kinds. Kinds other than ban/unban pass through the
// fold without a hierarchy check on the target.
const (
	ActionBan   = "ban"
	ActionUnban = "unban"
)

// ModerationAction bans or unbans a target identity.
type ModerationAction struct {
	Action  string
	DID     string
	InboxID string // optional
	Reason  string // optional
}

func (ModerationAction) controlEvent() {}

// StateSnapshot re-broadcasts the community's entire current structure so
// members past the transport's forward-secrecy boundary can reconstruct
// state without seeing prior history. Applying one replaces config,
// channels, roles, and both ban sets wholesale.
type StateSnapshot struct {
	Config         SnapshotConfig
	Channels       []SnapshotChannel
	Roles          []SnapshotRole
	Bans           []string // stable identities
	BannedInboxIDs []string // transport identities
}

func (StateSnapshot) controlEvent() {}

// SnapshotConfig is the config section of a snapshot.
type SnapshotConfig struct {
	Name        string
	Description string
	Settings    map[string]any
}

// SnapshotChannel is one channel entry in a snapshot.
// Archived channels are excluded when a snapshot is built.
type SnapshotChannel struct {
	ChannelID   string
	Name        string
	Description string
	GroupID     string
	Category    string
	Permissions PermissionMode
}

// SnapshotRole is one role entry in a snapshot. InboxID is carried
// whenever known so a receiving replay can authorize post-snapshot
// events without assuming the DID equals the transport identity.
type SnapshotRole struct {
	DID     string
	InboxID string // optional
	Role    RoleLevel
}

package event

// PermissionMode controls who may post in a channel.
type PermissionMode string

const (
	PermissionOpen      PermissionMode = "open"
	PermissionModerated PermissionMode = "moderated"
	PermissionReadOnly  PermissionMode = "read-only"
)

// ParsePermissionMode maps a wire value to a PermissionMode,
// defaulting to open for unknown values.
func ParsePermissionMode(s string) PermissionMode {
	switch PermissionMode(s) {
	case PermissionModerated:
		return PermissionModerated
	case PermissionReadOnly:
		return PermissionReadOnly
	default:
		return PermissionOpen
	}
}

// CommunityState is the replay engine's output: the authorized view of a
// community reconstructed from its control feed. It is a plain value;
// the cache mirrors it but is never consulted while folding.
type CommunityState struct {
	Config *CommunityConfig

	// Channels keyed by channel id. Insertion order is irrelevant;
	// consumers sort when order matters.
	Channels map[string]*ChannelState

	// Roles keyed by stable identity (DID).
	Roles map[string]RoleLevel

	// RoleInboxIDs maps a stable identity to its transport identity when
	// one was observed, for display and snapshot rebuild.
	RoleInboxIDs map[string]string

	// Two parallel ban sets. The same logical user may be referenced by
	// either identifier across different events, so both forms are kept
	// rather than normalized to one.
	BannedDIDs    map[string]struct{}
	BannedInboxes map[string]struct{}

	// Announcements in feed order, append-only.
	Announcements []AnnouncementEntry
}

// ChannelState is the folded view of one channel. Mutated by update and
// archive events; never removed.
type ChannelState struct {
	ID          string
	Name        string
	Description string
	Category    string
	GroupID     string
	Permissions PermissionMode
	Archived    bool
}

// AnnouncementEntry is one entry in the append-only announcement list.
type AnnouncementEntry struct {
	Text   string
	Sender string
	SentAt int64 // unix milliseconds
}

// NewCommunityState returns an empty state with all maps allocated.
func NewCommunityState() *CommunityState {
	return &CommunityState{
		Channels:      make(map[string]*ChannelState),
		Roles:         make(map[string]RoleLevel),
		RoleInboxIDs:  make(map[string]string),
		BannedDIDs:    make(map[string]struct{}),
		BannedInboxes: make(map[string]struct{}),
	}
}

// RoleOf returns the role recorded for a stable identity, defaulting to
// member when absent.
func (s *CommunityState) RoleOf(did string) RoleLevel {
	if r, ok := s.Roles[did]; ok {
		return r
	}
	return RoleMember
}

// Banned reports whether an identity, in either form, is banned.
func (s *CommunityState) Banned(id string) bool {
	if _, ok := s.BannedDIDs[id]; ok {
		return true
	}
	_, ok := s.BannedInboxes[id]
	return ok
}

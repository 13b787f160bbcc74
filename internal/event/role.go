package event

// RoleLevel is the totally ordered community role hierarchy.
//
// Absence of a role table entry is treated as RoleMember for permission
// comparisons. Every privileged control event is gated on a comparison
// against this order, so the zero value is deliberately invalid.
type RoleLevel int

const (
	RoleMember RoleLevel = iota + 1
	RoleModerator
	RoleAdmin
	RoleOwner
)

// String returns the wire name of the role. Adheres to fmt.Stringer.
func (r RoleLevel) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire name to a RoleLevel.
// Returns false for anything that is not one of the four known roles.
func ParseRole(s string) (RoleLevel, bool) {
	switch s {
	case "member":
		return RoleMember, true
	case "moderator":
		return RoleModerator, true
	case "admin":
		return RoleAdmin, true
	case "owner":
		return RoleOwner, true
	default:
		return 0, false
	}
}

// Valid reports whether r is one of the four defined levels.
func (r RoleLevel) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

package harness

import (
	"fmt"

	"github.com/roach88/palaver/internal/event"
)

// Check evaluates one assertion against folded state. Returns nil when
// the assertion holds.
func Check(st *event.CommunityState, a Assertion) error {
	switch a.Type {
	case "config_name":
		name := ""
		if st.Config != nil {
			name = st.Config.Name
		}
		if name != a.Value {
			return fmt.Errorf("config_name: got %q, want %q", name, a.Value)
		}
	case "role":
		want, ok := event.ParseRole(a.Role)
		if !ok {
			return fmt.Errorf("role: unknown role %q", a.Role)
		}
		if want == event.RoleMember {
			// "member" asserts the default: no explicit table entry.
			if r, exists := st.Roles[a.DID]; exists {
				return fmt.Errorf("role: %s has explicit role %s, want default member", a.DID, r)
			}
			return nil
		}
		if got := st.RoleOf(a.DID); got != want {
			return fmt.Errorf("role: %s has %s, want %s", a.DID, got, want)
		}
	case "channel_exists":
		_, exists := st.Channels[a.Channel]
		if exists == a.Negate {
			return fmt.Errorf("channel_exists: %s exists=%v, want %v", a.Channel, exists, !a.Negate)
		}
	case "channel_archived":
		ch, exists := st.Channels[a.Channel]
		if !exists {
			return fmt.Errorf("channel_archived: channel %s does not exist", a.Channel)
		}
		if ch.Archived == a.Negate {
			return fmt.Errorf("channel_archived: %s archived=%v, want %v", a.Channel, ch.Archived, !a.Negate)
		}
	case "banned":
		banned := st.Banned(a.ID)
		if banned == a.Negate {
			return fmt.Errorf("banned: %s banned=%v, want %v", a.ID, banned, !a.Negate)
		}
	case "announcements":
		if len(st.Announcements) != a.Count {
			return fmt.Errorf("announcements: got %d, want %d", len(st.Announcements), a.Count)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// CheckAll evaluates every assertion, collecting failures.
func CheckAll(st *event.CommunityState, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		if err := Check(st, a); err != nil {
			errs = append(errs, fmt.Errorf("assertion %d: %w", i, err))
		}
	}
	return errs
}

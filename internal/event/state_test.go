package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermissionMode(t *testing.T) {
	assert.Equal(t, PermissionOpen, ParsePermissionMode("open"))
	assert.Equal(t, PermissionModerated, ParsePermissionMode("moderated"))
	assert.Equal(t, PermissionReadOnly, ParsePermissionMode("read-only"))
	assert.Equal(t, PermissionOpen, ParsePermissionMode(""))
	assert.Equal(t, PermissionOpen, ParsePermissionMode("locked"))
}

func TestCommunityState_RoleOf(t *testing.T) {
	st := NewCommunityState()
	st.Roles["did:alice"] = RoleAdmin

	assert.Equal(t, RoleAdmin, st.RoleOf("did:alice"))
	assert.Equal(t, RoleMember, st.RoleOf("did:nobody"), "absence defaults to member")
}

func TestCommunityState_Banned(t *testing.T) {
	st := NewCommunityState()
	st.BannedDIDs["did:mallory"] = struct{}{}
	st.BannedInboxes["inbox-9"] = struct{}{}

	assert.True(t, st.Banned("did:mallory"))
	assert.True(t, st.Banned("inbox-9"))
	assert.False(t, st.Banned("did:alice"))
}

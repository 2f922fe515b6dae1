package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuperAdminHasUnconditionalAuthority(t *testing.T) {
	actor := NewRoleSet(RoleSuperAdmin)
	targets := []RoleSet{
		NewRoleSet(),
		NewRoleSet(RoleLimitedAdmin),
		NewRoleSet(RoleAdmin),
		NewRoleSet(RoleSuperAdmin),
		NewRoleSet(RoleSuperAdmin, RoleAdmin, RoleLimitedAdmin),
	}
	for _, target := range targets {
		assert.True(t, CanCreateUser(actor))
		assert.True(t, CanViewUser("a", actor, "b", target))
		assert.True(t, CanEditUser("a", actor, "b", target))
		assert.True(t, CanDeleteUser(actor, target))
	}
	for _, role := range Tiers() {
		assert.True(t, CanManageRoleMembers(actor, role))
		assert.True(t, RoleCheckboxEditable(actor, role))
	}
}

func TestAdminBoundedToLimitedTier(t *testing.T) {
	actor := NewRoleSet(RoleAdmin)

	cases := []struct {
		name    string
		target  RoleSet
		allowed bool
	}{
		{"no roles", NewRoleSet(), true},
		{"limited admin", NewRoleSet(RoleLimitedAdmin), true},
		{"admin", NewRoleSet(RoleAdmin), false},
		{"super admin", NewRoleSet(RoleSuperAdmin), false},
		{"admin and limited", NewRoleSet(RoleAdmin, RoleLimitedAdmin), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanViewUser("a", actor, "b", tc.target))
			assert.Equal(t, tc.allowed, CanEditUser("a", actor, "b", tc.target))
		})
	}
}

func TestAdminDeleteRule(t *testing.T) {
	actor := NewRoleSet(RoleAdmin)

	assert.True(t, CanDeleteUser(actor, NewRoleSet()))
	assert.True(t, CanDeleteUser(actor, NewRoleSet(RoleLimitedAdmin)))
	assert.False(t, CanDeleteUser(actor, NewRoleSet(RoleAdmin)))
	assert.False(t, CanDeleteUser(actor, NewRoleSet(RoleSuperAdmin)))
	// A target holding LimitedAdmin alongside a higher tier is still
	// deletable per the reference rule: LimitedAdmin membership suffices.
	assert.True(t, CanDeleteUser(actor, NewRoleSet(RoleAdmin, RoleLimitedAdmin)))
}

func TestAdminRoleMembershipScope(t *testing.T) {
	actor := NewRoleSet(RoleAdmin)

	assert.True(t, CanManageRoleMembers(actor, RoleLimitedAdmin))
	assert.False(t, CanManageRoleMembers(actor, RoleAdmin))
	assert.False(t, CanManageRoleMembers(actor, RoleSuperAdmin))

	assert.True(t, RoleCheckboxEditable(actor, RoleLimitedAdmin))
	assert.False(t, RoleCheckboxEditable(actor, RoleAdmin))
	assert.False(t, RoleCheckboxEditable(actor, RoleSuperAdmin))
}

func TestSelfScopedActors(t *testing.T) {
	for _, actor := range []RoleSet{NewRoleSet(), NewRoleSet(RoleLimitedAdmin)} {
		assert.True(t, CanViewUser("self", actor, "self", NewRoleSet()))
		assert.True(t, CanEditUser("self", actor, "self", NewRoleSet(RoleLimitedAdmin)))

		assert.False(t, CanViewUser("self", actor, "other", NewRoleSet()))
		assert.False(t, CanEditUser("self", actor, "other", NewRoleSet()))
		assert.False(t, CanCreateUser(actor))
		assert.False(t, CanDeleteUser(actor, NewRoleSet()))
		assert.False(t, CanManageRoleMembers(actor, RoleLimitedAdmin))
	}
}

func TestRoleListingVisibility(t *testing.T) {
	assert.True(t, CanViewRoles(NewRoleSet(RoleSuperAdmin)))
	assert.True(t, CanViewRoles(NewRoleSet(RoleAdmin)))
	assert.True(t, CanViewRoles(NewRoleSet(RoleLimitedAdmin)))
	assert.False(t, CanViewRoles(NewRoleSet()))
	assert.False(t, CanViewRoles(NewRoleSet("Viewer")))
}

func TestSelectableRoles(t *testing.T) {
	requested := []string{RoleSuperAdmin, RoleAdmin, RoleLimitedAdmin}

	assert.Equal(t, requested, SelectableRoles(NewRoleSet(RoleSuperAdmin), requested))
	assert.Equal(t, []string{RoleLimitedAdmin}, SelectableRoles(NewRoleSet(RoleAdmin), requested))
	assert.Empty(t, SelectableRoles(NewRoleSet(RoleLimitedAdmin), requested))
	assert.Empty(t, SelectableRoles(NewRoleSet(), requested))
}

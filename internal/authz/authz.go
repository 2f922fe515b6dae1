// Package authz holds the role-precedence authorization rules.
//
// Every predicate is a pure function over explicit actor and target role
// sets: nothing in this package reads the session or the database. Callers
// must pass memberships read from the store at request time, because a role
// can be revoked between page render and form submission. Both the view
// layer (to hide controls) and the mutating handlers (to enforce) consult
// these same functions.
package authz

// Role tiers in descending precedence. SuperAdmin has unconditional
// authority, Admin is bounded to the LimitedAdmin tier and below, and
// LimitedAdmin or unassigned users have read-only self-scoped authority.
const (
	RoleSuperAdmin   = "SuperAdmin"
	RoleAdmin        = "Admin"
	RoleLimitedAdmin = "LimitedAdmin"
)

// Tiers lists the fixed role names in descending precedence.
func Tiers() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleLimitedAdmin}
}

// RoleSet is an unordered set of role names held by a user.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the named role.
func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Empty reports whether the user holds no roles.
func (s RoleSet) Empty() bool { return len(s) == 0 }

// Names returns the contained role names in unspecified order.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

// atMostLimited reports whether the target holds at most the LimitedAdmin
// tier: no SuperAdmin and no Admin membership. An empty set qualifies.
func atMostLimited(target RoleSet) bool {
	return !target.Has(RoleSuperAdmin) && !target.Has(RoleAdmin)
}

// CanViewRoles reports whether the actor may open the role listing page.
// Any of the three tiers qualifies; users without roles may not.
func CanViewRoles(actor RoleSet) bool {
	return actor.Has(RoleSuperAdmin) || actor.Has(RoleAdmin) || actor.Has(RoleLimitedAdmin)
}

// CanManageRoleMembers reports whether the actor may mutate the membership
// of the named role. SuperAdmin may manage any role; Admin only the
// LimitedAdmin role.
func CanManageRoleMembers(actor RoleSet, roleName string) bool {
	if actor.Has(RoleSuperAdmin) {
		return true
	}
	return actor.Has(RoleAdmin) && roleName == RoleLimitedAdmin
}

// CanCreateUser reports whether the actor may create new user accounts.
func CanCreateUser(actor RoleSet) bool {
	return actor.Has(RoleSuperAdmin) || actor.Has(RoleAdmin)
}

// CanViewUser reports whether the actor may open the target's profile.
// Users always see themselves; SuperAdmin sees everyone; Admin sees only
// targets holding at most LimitedAdmin (or no role).
func CanViewUser(actorID string, actor RoleSet, targetID string, target RoleSet) bool {
	if actorID != "" && actorID == targetID {
		return true
	}
	if actor.Has(RoleSuperAdmin) {
		return true
	}
	return actor.Has(RoleAdmin) && atMostLimited(target)
}

// CanEditUser reports whether the actor may edit the target's profile.
// The predicate is identical to CanViewUser.
func CanEditUser(actorID string, actor RoleSet, targetID string, target RoleSet) bool {
	return CanViewUser(actorID, actor, targetID, target)
}

// CanDeleteUser reports whether the actor may delete the target.
// SuperAdmin may delete anyone. An Admin who is not also SuperAdmin may
// delete only targets that hold LimitedAdmin or no role at all.
func CanDeleteUser(actor RoleSet, target RoleSet) bool {
	if actor.Has(RoleSuperAdmin) {
		return true
	}
	return actor.Has(RoleAdmin) && (target.Has(RoleLimitedAdmin) || target.Empty())
}

// RoleCheckboxEditable reports whether the actor may toggle the named role
// row on a user's edit form. SuperAdmin may edit any row; Admin may edit
// only the LimitedAdmin row, so the Admin and SuperAdmin rows of a
// low-privilege target stay read-only.
func RoleCheckboxEditable(actor RoleSet, roleName string) bool {
	if actor.Has(RoleSuperAdmin) {
		return true
	}
	return actor.Has(RoleAdmin) && roleName == RoleLimitedAdmin
}

// SelectableRoles filters the submitted role names down to those the actor
// is allowed to assign or revoke.
func SelectableRoles(actor RoleSet, requested []string) []string {
	allowed := make([]string, 0, len(requested))
	for _, name := range requested {
		if RoleCheckboxEditable(actor, name) {
			allowed = append(allowed, name)
		}
	}
	return allowed
}

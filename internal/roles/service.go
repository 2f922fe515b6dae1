package roles

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
)

// Service handles the role registry and role membership.
type Service struct {
	repo  RepositoryPort
	users UserDirectory
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

// Seed idempotently creates the three fixed tiers. Running it repeatedly
// produces exactly one record per name.
func (s *Service) Seed(ctx context.Context) error {
	descriptions := map[string]string{
		authz.RoleSuperAdmin:   "Unconditional authority over all users and roles.",
		authz.RoleAdmin:        "Authority over LimitedAdmin users and unassigned users.",
		authz.RoleLimitedAdmin: "Read-only, self-scoped access.",
	}
	for _, name := range authz.Tiers() {
		if err := s.repo.EnsureRole(ctx, name, descriptions[name]); err != nil {
			return err
		}
	}
	return nil
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// FindRole fetches a role by ID.
func (s *Service) FindRole(ctx context.Context, id int64) (*Role, error) {
	return s.repo.FindRole(ctx, id)
}

// Membership splits the user population by membership in the given role.
type Membership struct {
	Role       Role
	Members    []accounts.User
	NonMembers []accounts.User
	Errors     shared.ErrorList
}

// Members loads the membership page model for a role.
func (s *Service) Members(ctx context.Context, roleID int64) (*Membership, error) {
	role, err := s.repo.FindRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	membership := &Membership{Role: *role}
	for _, user := range users {
		if slices.Contains(user.Roles, role.Name) {
			membership.Members = append(membership.Members, user)
		} else {
			membership.NonMembers = append(membership.NonMembers, user)
		}
	}
	return membership, nil
}

// UpdateMembers grants the role to addIDs and revokes it from removeIDs as
// independent calls, collecting failures into one structured error list so
// a single bad id does not mask the rest.
func (s *Service) UpdateMembers(ctx context.Context, roleID int64, addIDs, removeIDs []uuid.UUID) error {
	role, err := s.repo.FindRole(ctx, roleID)
	if err != nil {
		return err
	}
	var errs shared.ErrorList
	for _, id := range addIDs {
		if err := s.users.AddRole(ctx, id, role.Name); err != nil {
			errs = append(errs, shared.Errors(err)...)
		}
	}
	for _, id := range removeIDs {
		if err := s.users.RemoveRole(ctx, id, role.Name); err != nil {
			errs = append(errs, shared.Errors(err)...)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

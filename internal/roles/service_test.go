package roles

import (
	"context"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
)

type mockRoleRepo struct {
	roles  []Role
	nextID int64
}

func (m *mockRoleRepo) EnsureRole(ctx context.Context, name, description string) error {
	for _, role := range m.roles {
		if role.Name == name {
			return nil
		}
	}
	m.nextID++
	m.roles = append(m.roles, Role{ID: m.nextID, Name: name, Description: description})
	return nil
}

func (m *mockRoleRepo) ListRoles(ctx context.Context) ([]Role, error) {
	return slices.Clone(m.roles), nil
}

func (m *mockRoleRepo) FindRole(ctx context.Context, id int64) (*Role, error) {
	for _, role := range m.roles {
		if role.ID == id {
			copied := role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

type mockDirectory struct {
	users map[uuid.UUID]*accounts.User

	addErr    error
	removeErr error
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{users: make(map[uuid.UUID]*accounts.User)}
}

func (m *mockDirectory) addUser(username string, roles ...string) uuid.UUID {
	id := uuid.New()
	m.users[id] = &accounts.User{ID: id, Username: username, Roles: roles}
	return id
}

func (m *mockDirectory) ListUsers(ctx context.Context) ([]accounts.User, error) {
	users := make([]accounts.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, *user)
	}
	return users, nil
}

func (m *mockDirectory) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	if m.addErr != nil {
		return m.addErr
	}
	user, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	if !slices.Contains(user.Roles, role) {
		user.Roles = append(user.Roles, role)
	}
	return nil
}

func (m *mockDirectory) RemoveRole(ctx context.Context, id uuid.UUID, role string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	user, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	user.Roles = slices.DeleteFunc(user.Roles, func(r string) bool { return r == role })
	return nil
}

func TestSeedIdempotent(t *testing.T) {
	repo := &mockRoleRepo{}
	svc := NewService(repo, newMockDirectory())

	require.NoError(t, svc.Seed(context.Background()))
	require.NoError(t, svc.Seed(context.Background()))

	roles, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 3)

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	assert.ElementsMatch(t, authz.Tiers(), names)
}

func TestMembersSplitsPopulation(t *testing.T) {
	repo := &mockRoleRepo{}
	dir := newMockDirectory()
	svc := NewService(repo, dir)
	require.NoError(t, svc.Seed(context.Background()))

	dir.addUser("alice", authz.RoleAdmin)
	dir.addUser("bob")
	dir.addUser("carol", authz.RoleAdmin, authz.RoleLimitedAdmin)

	adminRole := findByName(t, repo, authz.RoleAdmin)
	membership, err := svc.Members(context.Background(), adminRole.ID)
	require.NoError(t, err)

	assert.Len(t, membership.Members, 2)
	assert.Len(t, membership.NonMembers, 1)
	assert.Equal(t, "bob", membership.NonMembers[0].Username)
}

func TestMembersUnknownRole(t *testing.T) {
	svc := NewService(&mockRoleRepo{}, newMockDirectory())
	_, err := svc.Members(context.Background(), 42)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMembersAppliesBoth(t *testing.T) {
	repo := &mockRoleRepo{}
	dir := newMockDirectory()
	svc := NewService(repo, dir)
	require.NoError(t, svc.Seed(context.Background()))

	toAdd := dir.addUser("alice")
	toRemove := dir.addUser("bob", authz.RoleLimitedAdmin)

	role := findByName(t, repo, authz.RoleLimitedAdmin)
	err := svc.UpdateMembers(context.Background(), role.ID, []uuid.UUID{toAdd}, []uuid.UUID{toRemove})
	require.NoError(t, err)

	assert.Contains(t, dir.users[toAdd].Roles, authz.RoleLimitedAdmin)
	assert.NotContains(t, dir.users[toRemove].Roles, authz.RoleLimitedAdmin)
}

func TestUpdateMembersCollectsFailures(t *testing.T) {
	repo := &mockRoleRepo{}
	dir := newMockDirectory()
	svc := NewService(repo, dir)
	require.NoError(t, svc.Seed(context.Background()))

	good := dir.addUser("alice")
	role := findByName(t, repo, authz.RoleLimitedAdmin)

	// One unknown id must not mask the grant to the known one.
	err := svc.UpdateMembers(context.Background(), role.ID, []uuid.UUID{good, uuid.New()}, nil)
	require.Error(t, err)
	assert.Contains(t, dir.users[good].Roles, authz.RoleLimitedAdmin)

	var errs shared.ErrorList
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 1)
}

func findByName(t *testing.T, repo *mockRoleRepo, name string) Role {
	t.Helper()
	for _, role := range repo.roles {
		if role.Name == name {
			return role
		}
	}
	t.Fatalf("role %s not seeded", name)
	return Role{}
}

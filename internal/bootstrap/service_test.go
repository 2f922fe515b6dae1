package bootstrap

import (
	"context"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/roles"
	"github.com/aegis-admin/aegis/internal/shared"
)

type memoryStore struct {
	accounts *memoryAccounts
	err      error
}

func (s *memoryStore) CountSuperAdmins(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	var count int64
	for _, held := range s.accounts.roles {
		if slices.Contains(held, authz.RoleSuperAdmin) {
			count++
		}
	}
	return count, nil
}

type memoryAccounts struct {
	users map[uuid.UUID]*accounts.User
	roles map[uuid.UUID][]string
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{
		users: make(map[uuid.UUID]*accounts.User),
		roles: make(map[uuid.UUID][]string),
	}
}

func (m *memoryAccounts) FindByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (m *memoryAccounts) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryAccounts) Create(ctx context.Context, user *accounts.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memoryAccounts) Update(ctx context.Context, user *accounts.User) error { return nil }

func (m *memoryAccounts) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return nil
}

func (m *memoryAccounts) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *memoryAccounts) ListUsers(ctx context.Context) ([]accounts.User, error) {
	users := make([]accounts.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, *user)
	}
	return users, nil
}

func (m *memoryAccounts) RolesOf(ctx context.Context, id uuid.UUID) ([]string, error) {
	return slices.Clone(m.roles[id]), nil
}

func (m *memoryAccounts) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	if !slices.Contains(m.roles[id], role) {
		m.roles[id] = append(m.roles[id], role)
	}
	return nil
}

func (m *memoryAccounts) RemoveRole(ctx context.Context, id uuid.UUID, role string) error {
	m.roles[id] = slices.DeleteFunc(m.roles[id], func(r string) bool { return r == role })
	return nil
}

var _ accounts.RepositoryPort = (*memoryAccounts)(nil)

type memoryRoles struct {
	roles  []roles.Role
	nextID int64
}

func (m *memoryRoles) EnsureRole(ctx context.Context, name, description string) error {
	for _, role := range m.roles {
		if role.Name == name {
			return nil
		}
	}
	m.nextID++
	m.roles = append(m.roles, roles.Role{ID: m.nextID, Name: name, Description: description})
	return nil
}

func (m *memoryRoles) ListRoles(ctx context.Context) ([]roles.Role, error) {
	return slices.Clone(m.roles), nil
}

func (m *memoryRoles) FindRole(ctx context.Context, id int64) (*roles.Role, error) {
	for _, role := range m.roles {
		if role.ID == id {
			copied := role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func newTestService() (*Service, *memoryAccounts) {
	accountRepo := newMemoryAccounts()
	accountService := accounts.NewService(accountRepo)
	roleService := roles.NewService(&memoryRoles{}, accountRepo)
	store := &memoryStore{accounts: accountRepo}
	return NewService(store, accountService, roleService), accountRepo
}

func TestSetupAvailableUntilSuperAdminExists(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	assert.True(t, svc.Available(ctx))

	user, err := svc.CreateFirstAdmin(ctx, Input{
		Username: "root",
		Email:    "root@test.local",
		Password: "Sunshine!42",
	})
	require.NoError(t, err)
	assert.Contains(t, user.Roles, authz.RoleSuperAdmin)

	assert.False(t, svc.Available(ctx))
}

func TestSetupClosedAfterFirstAdmin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateFirstAdmin(ctx, Input{Username: "root", Email: "root@test.local", Password: "Sunshine!42"})
	require.NoError(t, err)

	_, err = svc.CreateFirstAdmin(ctx, Input{Username: "other", Email: "other@test.local", Password: "Sunshine!42"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSetupFailsClosedOnStoreError(t *testing.T) {
	accountRepo := newMemoryAccounts()
	accountService := accounts.NewService(accountRepo)
	roleService := roles.NewService(&memoryRoles{}, accountRepo)
	store := &memoryStore{accounts: accountRepo, err: assert.AnError}
	svc := NewService(store, accountService, roleService)

	// An unreadable count means setup is unavailable, never open.
	assert.False(t, svc.Available(context.Background()))
}

func TestSetupRejectsWeakPassword(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateFirstAdmin(context.Background(), Input{
		Username: "root",
		Email:    "root@test.local",
		Password: "root123",
	})
	require.Error(t, err)
	assert.True(t, svc.Available(context.Background()))
}

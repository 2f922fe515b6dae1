// Package bootstrap handles first-time setup of the system: creating the
// initial SuperAdmin account while no user holds that role yet.
package bootstrap

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/roles"
)

// ErrUnavailable reports that a SuperAdmin already exists, so the setup
// flow is permanently closed.
var ErrUnavailable = errors.New("setup is no longer available")

// Store answers the single persisted question bootstrap needs: how many
// users currently hold SuperAdmin.
type Store interface {
	CountSuperAdmins(ctx context.Context) (int64, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// CountSuperAdmins counts users holding the SuperAdmin role.
func (s *PGStore) CountSuperAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE r.name = $1`, authz.RoleSuperAdmin).Scan(&count)
	return count, err
}

// Service coordinates the one-time setup flow.
type Service struct {
	store    Store
	accounts *accounts.Service
	roles    *roles.Service
}

// NewService builds Service instance.
func NewService(store Store, accountSvc *accounts.Service, roleSvc *roles.Service) *Service {
	return &Service{store: store, accounts: accountSvc, roles: roleSvc}
}

// Available reports whether setup may still run. The check is persisted
// state, not process memory, and fails closed: if the count cannot be
// read, setup is unavailable.
func (s *Service) Available(ctx context.Context) bool {
	count, err := s.store.CountSuperAdmins(ctx)
	if err != nil {
		return false
	}
	return count == 0
}

// Input carries the first administrator's profile.
type Input struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// CreateFirstAdmin seeds the role registry and creates the initial
// SuperAdmin. It re-checks availability so two racing setups cannot both
// succeed in creating a second SuperAdmin unnoticed.
func (s *Service) CreateFirstAdmin(ctx context.Context, input Input) (*accounts.User, error) {
	if !s.Available(ctx) {
		return nil, ErrUnavailable
	}
	if err := s.roles.Seed(ctx); err != nil {
		return nil, err
	}
	return s.accounts.Create(ctx, accounts.CreateInput{
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  input.Password,
		Roles:     []string{authz.RoleSuperAdmin},
	})
}

package roles

import (
	"context"

	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/accounts"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	EnsureRole(ctx context.Context, name, description string) error
	ListRoles(ctx context.Context) ([]Role, error)
	FindRole(ctx context.Context, id int64) (*Role, error)
}

// UserDirectory is the slice of the account store the membership page
// needs: the full user population plus grant/revoke calls.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]accounts.User, error)
	AddRole(ctx context.Context, id uuid.UUID, role string) error
	RemoveRole(ctx context.Context, id uuid.UUID, role string) error
}

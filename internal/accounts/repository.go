package accounts

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryPort defines the account store contract. Mutating calls return
// either nil or an error convertible to a structured error list.
type RepositoryPort interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context) ([]User, error)
	RolesOf(ctx context.Context, id uuid.UUID) ([]string, error)
	AddRole(ctx context.Context, id uuid.UUID, role string) error
	RemoveRole(ctx context.Context, id uuid.UUID, role string) error
}

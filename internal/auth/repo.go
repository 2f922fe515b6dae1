package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*accounts.User, error)
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	CreateResetToken(ctx context.Context, token, userID uuid.UUID, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, token, userID uuid.UUID) error
	PurgeExpiredResetTokens(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// PGRepository implements Repository using PostgreSQL. User lookups are
// delegated to the account store so auth never duplicates account state.
type PGRepository struct {
	pool     *pgxpool.Pool
	accounts accounts.RepositoryPort
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, accountRepo accounts.RepositoryPort) *PGRepository {
	return &PGRepository{pool: pool, accounts: accountRepo}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return r.accounts.FindByEmail(ctx, email)
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID,
		pgtype.Timestamptz{Time: now, Valid: true},
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// CreateResetToken stores a single-use reset credential bound to one user.
func (r *PGRepository) CreateResetToken(ctx context.Context, token, userID uuid.UUID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, now())`,
		token, userID, pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true})
	return err
}

// ConsumeResetToken atomically deletes an unexpired token bound to the
// given user. Consumption and the binding check are one statement, so a
// redemption naming the wrong account leaves the token intact. A second
// consumption, an expired token, or a wrong user reports ErrNotFound.
func (r *PGRepository) ConsumeResetToken(ctx context.Context, token, userID uuid.UUID) error {
	var consumed uuid.UUID
	err := r.pool.QueryRow(ctx, `
		DELETE FROM password_resets
		WHERE token = $1 AND user_id = $2 AND expires_at > now()
		RETURNING user_id`, token, userID).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// PurgeExpiredResetTokens removes tokens past their expiry.
func (r *PGRepository) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdatePassword replaces the stored credential hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.accounts.UpdatePassword(ctx, id, passwordHash)
}

var _ Repository = (*PGRepository)(nil)

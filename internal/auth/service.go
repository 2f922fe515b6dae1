package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/shared"
)

// Mailer enqueues outbound mail. Delivery is fire-and-forget from the
// reset flow's perspective: the flow neither retries nor observes the
// outcome.
type Mailer interface {
	Enqueue(ctx context.Context, to, subject, body string) error
}

// Service wraps authentication and password-reset business rules.
type Service struct {
	repo     Repository
	mailer   Mailer
	logger   *slog.Logger
	baseURL  string
	resetTTL time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, mailer Mailer, logger *slog.Logger, baseURL string, resetTTL time.Duration) *Service {
	if resetTTL <= 0 {
		resetTTL = 2 * time.Hour
	}
	return &Service{repo: repo, mailer: mailer, logger: logger, baseURL: baseURL, resetTTL: resetTTL}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*accounts.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// RequestReset issues a single-use reset credential for the account behind
// email and mails the reset link. An unknown email reports ErrNotFound,
// which the page renders as "Invalid user email." (knowingly revealing
// account existence, for compatibility).
func (s *Service) RequestReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := uuid.New()
	if err := s.repo.CreateResetToken(ctx, token, user.ID, time.Now().Add(s.resetTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/reset/confirm?token=%s", s.baseURL, token)
	body := "To reset your account password, click on the following link: " + link
	if err := s.mailer.Enqueue(ctx, user.Email, "Reset Password", body); err != nil {
		// Fire-and-forget: the token stays valid, the requester is not
		// told delivery failed.
		if s.logger != nil {
			s.logger.Warn("enqueue reset mail", slog.Any("error", err))
		}
	}
	return nil
}

// Redeem consumes a reset token and commits the new password. The token is
// deleted on consumption, so a second redemption fails with ErrNotFound.
func (s *Service) Redeem(ctx context.Context, token uuid.UUID, email, password, confirm string) error {
	if password != confirm {
		return shared.ErrPasswordMismatch
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	// Policy runs before consumption so a rejected password leaves the
	// token redeemable.
	if errs := accounts.ValidatePassword(password); len(errs) > 0 {
		return errs
	}

	// Consumption verifies the user binding in the same statement, so an
	// attempt naming the wrong account does not burn the token.
	if err := s.repo.ConsumeResetToken(ctx, token, user.ID); err != nil {
		return err
	}
	hash, err := accounts.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, user.ID, hash)
}

// PurgeExpiredResetTokens removes expired reset credentials and reports
// how many were dropped.
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredResetTokens(ctx)
}

// Package actor resolves the authenticated user for a request. Role
// memberships are re-read from the account store on every request, so
// authorization decisions never run against a stale snapshot.
package actor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
)

// Actor is the authenticated user making the current request.
type Actor struct {
	User  *accounts.User
	Roles authz.RoleSet
}

// ID returns the actor's user id as a string.
func (a *Actor) ID() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.ID.String()
}

type actorContextKey struct{}

// WithContext stores the actor in context.
func WithContext(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// FromContext extracts the actor from context.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorContextKey{}).(*Actor)
	return a
}

// Resolver loads actors from the session's user id.
type Resolver struct {
	Accounts *accounts.Service
	Logger   *slog.Logger
}

// Resolve looks up the session user and their current roles. A session
// whose user no longer exists (deleted concurrently) yields nil: the
// caller must treat the request as unauthenticated.
func (res Resolver) Resolve(r *http.Request) *Actor {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return nil
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		if res.Logger != nil {
			res.Logger.Error("parse session user id", slog.String("value", sess.User()))
		}
		return nil
	}
	user, err := res.Accounts.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && res.Logger != nil {
			res.Logger.Error("resolve actor", slog.Any("error", err))
		}
		return nil
	}
	return &Actor{User: user, Roles: authz.NewRoleSet(user.Roles...)}
}

// RequireAuth redirects unauthenticated requests to the login page and
// attaches the resolved actor to the request context otherwise.
func (res Resolver) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := res.Resolve(r)
		if a == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), a)))
	})
}

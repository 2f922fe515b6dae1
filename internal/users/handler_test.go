package users_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-admin/aegis/internal/accounts"
	"github.com/aegis-admin/aegis/internal/actor"
	"github.com/aegis-admin/aegis/internal/authz"
	"github.com/aegis-admin/aegis/internal/shared"
	"github.com/aegis-admin/aegis/internal/users"
	"github.com/aegis-admin/aegis/internal/view"
	_ "github.com/aegis-admin/aegis/testing"
)

type fakeRepo struct {
	users map[uuid.UUID]*accounts.User
	roles map[uuid.UUID][]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: make(map[uuid.UUID]*accounts.User),
		roles: make(map[uuid.UUID][]string),
	}
}

func (f *fakeRepo) addUser(username string, roles ...string) *accounts.User {
	id := uuid.New()
	user := &accounts.User{ID: id, Username: username, Email: username + "@test.local"}
	f.users[id] = user
	f.roles[id] = roles
	return user
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *user
	copied.Roles = slices.Clone(f.roles[id])
	return &copied, nil
}

func (f *fakeRepo) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	for id, user := range f.users {
		if user.Email == email {
			return f.FindByID(ctx, id)
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) Create(ctx context.Context, user *accounts.User) error {
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, user *accounts.User) error {
	copied := *user
	copied.Roles = nil
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error { return nil }

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.users, id)
	delete(f.roles, id)
	return nil
}

func (f *fakeRepo) ListUsers(ctx context.Context) ([]accounts.User, error) {
	users := make([]accounts.User, 0, len(f.users))
	for id := range f.users {
		user, _ := f.FindByID(ctx, id)
		users = append(users, *user)
	}
	return users, nil
}

func (f *fakeRepo) RolesOf(ctx context.Context, id uuid.UUID) ([]string, error) {
	return slices.Clone(f.roles[id]), nil
}

func (f *fakeRepo) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	if !slices.Contains(f.roles[id], role) {
		f.roles[id] = append(f.roles[id], role)
	}
	return nil
}

func (f *fakeRepo) RemoveRole(ctx context.Context, id uuid.UUID, role string) error {
	f.roles[id] = slices.DeleteFunc(f.roles[id], func(r string) bool { return r == role })
	return nil
}

var _ accounts.RepositoryPort = (*fakeRepo)(nil)

type fixture struct {
	repo     *fakeRepo
	router   chi.Router
	sessions *shared.SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeRepo()
	service := accounts.NewService(repo)
	resolver := actor.Resolver{Accounts: service, Logger: logger}
	handler := users.NewHandler(logger, service, templates, csrf, sessions, resolver, 5)

	router := chi.NewRouter()
	// Minimal session middleware so RequireAuth and the render helper
	// find a session in context.
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
			require.NoError(t, sessions.Commit(ctx, w, r, sess))
		})
	})
	router.Route("/users", handler.MountRoutes)
	return &fixture{repo: repo, router: router, sessions: sessions}
}

// login seeds a session bound to the given user and returns its cookie.
func (f *fixture) login(t *testing.T, userID uuid.UUID) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID.String())
	res := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), res, req, sess))
	return &http.Cookie{Name: f.sessions.CookieName(), Value: sess.ID}
}

func (f *fixture) get(t *testing.T, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *fixture) post(t *testing.T, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	res := f.get(t, "/users", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))
}

func TestLimitedAdminCannotOpenCreateForm(t *testing.T) {
	f := newFixture(t)
	limited := f.repo.addUser("limited", authz.RoleLimitedAdmin)
	cookie := f.login(t, limited.ID)

	res := f.get(t, "/users/new", cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "Access Denied")
}

func TestAdminCannotViewSuperAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.repo.addUser("admin", authz.RoleAdmin)
	super := f.repo.addUser("root", authz.RoleSuperAdmin)
	cookie := f.login(t, admin.ID)

	res := f.get(t, "/users/"+super.ID.String(), cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestLimitedAdminSeesOwnProfile(t *testing.T) {
	f := newFixture(t)
	limited := f.repo.addUser("limited", authz.RoleLimitedAdmin)
	cookie := f.login(t, limited.ID)

	res := f.get(t, "/users/"+limited.ID.String(), cookie)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "limited")
}

func TestCreateFailureSurvivesOneRedirect(t *testing.T) {
	f := newFixture(t)
	admin := f.repo.addUser("admin", authz.RoleAdmin)
	cookie := f.login(t, admin.ID)

	form := url.Values{}
	form.Set("username", "newbie")
	form.Set("email", "newbie@test.local")
	// Password deliberately missing.
	res := f.post(t, "/users", form, cookie)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/users/new", res.Header().Get("Location"))

	// The failed input and its errors reappear once...
	res = f.get(t, "/users/new", cookie)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "newbie")
	assert.Contains(t, res.Body.String(), "The password field is required.")

	// ...and are gone on the next load.
	res = f.get(t, "/users/new", cookie)
	assert.NotContains(t, res.Body.String(), "The password field is required.")
}

func TestDeleteReChecksCurrentRoles(t *testing.T) {
	f := newFixture(t)
	admin := f.repo.addUser("admin", authz.RoleAdmin)
	target := f.repo.addUser("victim", authz.RoleLimitedAdmin)
	cookie := f.login(t, admin.ID)

	// Target gains Admin between page render and submit; the delete must
	// be denied against the roles as they are now.
	f.repo.roles[target.ID] = []string{authz.RoleAdmin}
	res := f.post(t, "/users/"+target.ID.String()+"/delete", url.Values{}, cookie)
	assert.Equal(t, http.StatusForbidden, res.Code)

	f.repo.roles[target.ID] = []string{authz.RoleLimitedAdmin}
	res = f.post(t, "/users/"+target.ID.String()+"/delete", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	_, err := f.repo.FindByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

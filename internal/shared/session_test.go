package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("user-1")
	sess.Set("key", "value")

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	reloaded, err := sm.Load(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "user-1", reloaded.User())
	assert.Equal(t, "value", reloaded.Get("key"))
}

func TestFormStashSurvivesExactlyOneRead(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	type payload struct {
		Name   string   `json:"name"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, sess.StashForm("create_user", payload{Name: "alice", Errors: []string{"The email is not valid."}}))

	var got payload
	require.True(t, sess.PopForm("create_user", &got))
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, []string{"The email is not valid."}, got.Errors)

	// A second read finds nothing: the stash is gone after one round trip.
	assert.False(t, sess.PopForm("create_user", &got))
}

func TestFlashSurvivesRedirect(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	// POST: queue a flash, commit, redirect.
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "User created."})
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	// Redirected GET: the flash queued before the redirect is readable.
	second := httptest.NewRequest(http.MethodGet, "/users", nil)
	second.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	reloaded, err := sm.Load(ctx, second)
	require.NoError(t, err)
	flash := reloaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "User created.", flash.Message)
	res = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, second, reloaded))

	// Once rendered, it does not reappear.
	third := httptest.NewRequest(http.MethodGet, "/users", nil)
	third.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	final, err := sm.Load(ctx, third)
	require.NoError(t, err)
	assert.Nil(t, final.PopFlash())
}

func TestDestroyedSessionClearsCookie(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	sm.Destroy(sess)
	res = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCSRFVerify(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()
	csrf := NewCSRFManager("csrfsecret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, nil, token), ErrCSRFTokenMissing)
}

func TestPaginationClamps(t *testing.T) {
	p := NewPagination(9, 5, 7)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 5, p.Offset())
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	empty := NewPagination(1, 5, 0)
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext())
}

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/repository/sqlite"
)

type sessionFixture struct {
	db      *sqlite.DB
	manager *SessionManager
	user    *model.User
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &model.User{Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.CreateUser(context.Background(), user))

	tokens := newTestTokenService(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := NewSessionManager(db, db, tokens, SessionOptions{TTL: time.Hour}, logger)

	return &sessionFixture{db: db, manager: manager, user: user}
}

// login runs Login and returns the cookie it set.
func (f *sessionFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, f.manager.Login(context.Background(), rec, f.user))

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("Login() did not set the session cookie")
	return nil
}

func requestWithCookie(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

// =========================================================================
// LOGIN / IDENTITY TESTS
// =========================================================================

func TestLogin_SetsBrowserSessionCookie(t *testing.T) {
	f := newSessionFixture(t)

	c := f.login(t)

	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Zero(t, c.MaxAge, "cookie should not persist past the browser session")
	assert.True(t, c.Expires.IsZero())
}

func TestCurrentIdentity_ResolvesUser(t *testing.T) {
	f := newSessionFixture(t)
	c := f.login(t)

	user, err := f.manager.CurrentIdentity(requestWithCookie(c))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestCurrentIdentity_Anonymous(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.manager.CurrentIdentity(requestWithCookie(nil))
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestCurrentIdentity_ForgedCookie(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.manager.CurrentIdentity(requestWithCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"}))
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestCurrentIdentity_ExpiredSessionRow(t *testing.T) {
	f := newSessionFixture(t)
	c := f.login(t)

	// Move the manager's clock past the TTL; the JWT itself is still valid
	// only until its own exp, so check the row-based expiry path.
	f.manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := f.manager.CurrentIdentity(requestWithCookie(c))
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

// =========================================================================
// LOGOUT TESTS
// =========================================================================

func TestLogout_InvalidatesReplayedCookie(t *testing.T) {
	f := newSessionFixture(t)
	c := f.login(t)

	rec := httptest.NewRecorder()
	require.NoError(t, f.manager.Logout(context.Background(), rec, requestWithCookie(c)))

	// The response expires the cookie...
	var cleared *http.Cookie
	for _, rc := range rec.Result().Cookies() {
		if rc.Name == SessionCookieName {
			cleared = rc
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	// ...and the old cookie no longer resolves, even if the browser kept it.
	_, err := f.manager.CurrentIdentity(requestWithCookie(c))
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestLogout_WithoutSessionIsNoop(t *testing.T) {
	f := newSessionFixture(t)

	err := f.manager.Logout(context.Background(), httptest.NewRecorder(), requestWithCookie(nil))
	assert.NoError(t, err)
}

// =========================================================================
// MIDDLEWARE TESTS
// =========================================================================

func TestRequireIdentity_RedirectsAnonymousToLogin(t *testing.T) {
	f := newSessionFixture(t)
	called := false
	h := f.manager.RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithCookie(nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireIdentity_PutsUserInContext(t *testing.T) {
	f := newSessionFixture(t)
	c := f.login(t)

	var seen *model.User
	h := f.manager.RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), requestWithCookie(c))

	require.NotNil(t, seen)
	assert.Equal(t, f.user.ID, seen.ID)
}

func TestOptionalIdentity_NeverBlocks(t *testing.T) {
	f := newSessionFixture(t)

	var ok bool
	h := f.manager.OptionalIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithCookie(nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ok)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/repository"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "session"

// DefaultSessionTTL bounds how long a session row stays valid when no TTL is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue accepts any key. A plain string key could be read or shadowed
// by any package that knows the string. Only this package can create a key of
// type contextKey, so only this package can read or write the identity.
type contextKey string

const userKey contextKey = "user"

// SessionOptions tunes the session cookie.
type SessionOptions struct {
	// TTL is how long a login lasts on the server side. The cookie itself has
	// no Max-Age, so the browser drops it when it closes.
	TTL time.Duration
	// SecureCookie adds the Secure attribute (HTTPS only). Off for local dev.
	SecureCookie bool
}

// SessionManager establishes, resolves and destroys logins.
//
// The browser holds a JWT naming a session row; the row is the source of truth.
// Every request reloads the user from the database, so nothing about the
// identity is cached between requests.
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	tokens   *TokenService
	opts     SessionOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive TTL means DefaultSessionTTL.
func NewSessionManager(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	tokens *TokenService,
	opts SessionOptions,
	logger *slog.Logger,
) *SessionManager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Login creates a session for user and sets the session cookie on w.
//
// Expired rows are pruned first; a failure there is logged and ignored since it
// does not affect the new login.
func (m *SessionManager) Login(ctx context.Context, w http.ResponseWriter, user *model.User) error {
	now := m.now().UTC()

	if n, err := m.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		m.logger.Warn("pruning expired sessions failed", "error", err)
	} else if n > 0 {
		m.logger.Debug("pruned expired sessions", "count", n)
	}

	session := &model.Session{
		ID:        xid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.opts.TTL),
	}
	if err := m.sessions.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("auth: creating session: %w", err)
	}

	token, err := m.tokens.Generate(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return err
	}

	// COOKIE ATTRIBUTES:
	//   - HttpOnly: JavaScript cannot read it, so XSS cannot steal it
	//   - SameSite=Lax: not sent on cross-site POSTs (basic CSRF protection)
	//   - no MaxAge/Expires: a browser-session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Info("session started", "user_id", user.ID, "session_id", session.ID)
	return nil
}

// CurrentIdentity resolves the user behind the request's session cookie.
//
// Any failure (no cookie, bad signature, unknown or expired session, deleted
// user) is reported as apperror.ErrUnauthorized; database failures are returned
// as-is so they surface as 500s instead of silent logouts.
func (m *SessionManager) CurrentIdentity(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		// http.ErrNoCookie: anonymous, not a failure.
		return nil, apperror.Unauthorized("not signed in")
	}

	c, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		return nil, apperror.Unauthorized("invalid session")
	}

	session, err := m.sessions.GetSession(r.Context(), c.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session ended")
		}
		return nil, err
	}
	if session.UserID != c.UserID || session.Expired(m.now()) {
		return nil, apperror.Unauthorized("session ended")
	}

	user, err := m.users.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("account no longer exists")
		}
		return nil, err
	}

	return user, nil
}

// Logout deletes the request's session row (if any) and expires the cookie.
// Logging out without a session is not an error.
func (m *SessionManager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if cookie, cerr := r.Cookie(SessionCookieName); cerr == nil {
		if c, verr := m.tokens.Validate(cookie.Value); verr == nil {
			err = m.sessions.DeleteSession(ctx, c.SessionID)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if err != nil {
		return fmt.Errorf("auth: ending session: %w", err)
	}
	return nil
}

// RequireIdentity is a middleware for pages that need a signed-in user.
//
// Without a valid identity the browser is sent to /login with 303 See Other.
// Otherwise the *model.User is stored in the request context for handlers.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that wraps it.
// Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func (m *SessionManager) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.CurrentIdentity(r)
		if err != nil {
			if !errors.Is(err, apperror.ErrUnauthorized) {
				m.logger.Error("resolving identity failed", "error", err, "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalIdentity attaches the user when a valid session exists and never blocks.
// Public pages use it to greet signed-in visitors.
func (m *SessionManager) OptionalIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := m.CurrentIdentity(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the signed-in user stored by the identity middlewares.
//
// Returns (nil, false) if the request is anonymous.
//
// Usage in handlers:
//
//	user, ok := auth.UserFromContext(r.Context())
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

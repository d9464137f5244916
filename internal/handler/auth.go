package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/monoculum/formam"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/service"
)

// credentialsForm is the body of the register and login forms.
type credentialsForm struct {
	Username string `formam:"username"`
	Password string `formam:"password"`
}

// AuthHandler serves account pages and the sign-in flows.
//
// HANDLER RESPONSIBILITIES:
//   - HandleHome            → landing page
//   - HandleRegister*       → create an account and sign straight in
//   - HandleLogin*          → check credentials and sign in
//   - HandleLogout          → destroy the session
//   - HandleGitHubLogin     → redirect the browser to GitHub (optional)
//   - HandleGitHubCallback  → receive the code, map it to a local user, sign in
//
// DEPENDENCY CHAIN:
//   - accounts *service.AuthService   → who is this? (register, authenticate)
//   - sessions *auth.SessionManager   → remember them (cookie + session row)
//   - github   *auth.GitHubProvider   → nil when GitHub sign-in is not configured
type AuthHandler struct {
	Pages
	accounts *service.AuthService
	sessions *auth.SessionManager
	github   *auth.GitHubProvider
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	pages Pages,
	accounts *service.AuthService,
	sessions *auth.SessionManager,
	github *auth.GitHubProvider,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		Pages:    pages,
		accounts: accounts,
		sessions: sessions,
		github:   github,
		logger:   logger,
	}
}

// decodeForm parses an urlencoded body into dst.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return decodeValues(r.PostForm, dst)
}

// decodeValues fills the formam-tagged fields of dst from values. Fields the
// form does not carry are left alone; extra form fields are ignored.
func decodeValues(values url.Values, dst any) error {
	dec := formam.NewDecoder(&formam.DecoderOptions{TagName: "formam", IgnoreUnknownKeys: true})
	return dec.Decode(values, dst)
}

// HandleHome renders the landing page.
//
// HTTP: GET /
func (h *AuthHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "index", h.data(r, nil))
}

// HandleRegisterPage renders the registration form.
//
// HTTP: GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "register", h.data(r, nil))
}

// HandleRegister creates the account and signs the new user in.
//
// HTTP: POST /register
//
//	success        → 303 /dashboard (already signed in)
//	name taken     → 303 /register?flash=Username+already+exists.
//	blank / too long fields → 303 /register with the validation message
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if err := decodeForm(r, &form); err != nil {
		redirectWithFlash(w, r, "/register", "Could not read the form.")
		return
	}

	user, err := h.accounts.Register(r.Context(), form.Username, form.Password)
	if err != nil {
		var appErr *apperror.AppError
		if (errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation)) && errors.As(err, &appErr) {
			redirectWithFlash(w, r, "/register", appErr.Message)
			return
		}
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.Login(r.Context(), w, user); err != nil {
		h.writeError(w, r, err)
		return
	}
	redirect(w, r, "/dashboard")
}

// HandleLoginPage renders the login form.
//
// HTTP: GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login", h.data(r, nil))
}

// HandleLogin checks credentials.
//
// HTTP: POST /login
//
// Success redirects to /dashboard. A failure re-renders the login page (200)
// with the flash "Invalid credentials", whether the username or the password
// was wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var form credentialsForm
	if err := decodeForm(r, &form); err != nil {
		h.renderLoginFailure(w, r, "Could not read the form.")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrUnauthorized) && errors.As(err, &appErr) {
			h.renderLoginFailure(w, r, appErr.Message)
			return
		}
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.Login(r.Context(), w, user); err != nil {
		h.writeError(w, r, err)
		return
	}
	redirect(w, r, "/dashboard")
}

func (h *AuthHandler) renderLoginFailure(w http.ResponseWriter, r *http.Request, message string) {
	data := h.data(r, nil)
	data.Flash = message
	h.render(w, http.StatusOK, "login", data)
}

// HandleLogout destroys the session and goes back to the login page.
//
// HTTP: GET /logout (behind RequireIdentity)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), w, r); err != nil {
		// The cookie is already expired; a stale row only lingers until pruned.
		h.logger.Warn("logout: deleting session failed", slog.String("error", err.Error()))
	}
	redirect(w, r, "/login")
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived cookie and sent to GitHub.
// HandleGitHubCallback only proceeds when GitHub echoes the same value back.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: it survives the top-level redirect back from GitHub
//   - 10-minute expiry: long enough for the user to approve
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewState()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the GitHub user
//  3. Find or create the local user for that GitHub account
//  4. Sign in exactly like a password login
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(auth.StateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		redirectWithFlash(w, r, "/login", "GitHub sign-in failed. Please try again.")
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   auth.StateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		redirectWithFlash(w, r, "/login", "GitHub sign-in was cancelled.")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		redirectWithFlash(w, r, "/login", "GitHub sign-in failed. Please try again.")
		return
	}

	// --- Step 2: Exchange code for the GitHub user ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		redirectWithFlash(w, r, "/login", "GitHub sign-in failed. Please try again.")
		return
	}

	// --- Step 3: Map to a local user ---
	user, err := h.accounts.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrConflict) && errors.As(err, &appErr) {
			redirectWithFlash(w, r, "/login", appErr.Message)
			return
		}
		h.writeError(w, r, err)
		return
	}

	// --- Step 4: Sign in ---
	if err := h.sessions.Login(r.Context(), w, user); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("user signed in via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	redirect(w, r, "/dashboard")
}

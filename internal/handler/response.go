package handler

// RESPONSE HELPERS:
// Every page goes through render, every failure through writeError, and every
// "done, go look over there" through redirectWithFlash. Handlers stay short:
//
//	h.render(w, http.StatusOK, "login", h.data(r, nil))
//	h.writeError(w, r, err)
//	redirectWithFlash(w, r, "/register", "Username already exists.")
//
// FLASH MESSAGES:
// A flash is a one-shot message shown on the next page. It rides along as a
// ?flash= query parameter on the redirect target, so no server-side state is
// needed to carry it across the redirect.

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/view"
)

// FlashParam is the query parameter carrying a flash message.
const FlashParam = "flash"

// Renderer renders a named page. *view.Renderer implements it.
type Renderer interface {
	Render(w io.Writer, page string, data view.Page) error
}

// errorContent is the data for page_error.gohtml.
type errorContent struct {
	Status     int
	StatusText string
	Message    string
}

// Pages is shared by every HTML handler: the templates, the logger and
// whether the GitHub sign-in link should be shown.
type Pages struct {
	views      Renderer
	logger     *slog.Logger
	showGitHub bool
}

// NewPages creates Pages. github enables the "Sign in with GitHub" link.
func NewPages(views Renderer, logger *slog.Logger, github bool) Pages {
	return Pages{views: views, logger: logger, showGitHub: github}
}

// data builds the common template data: the signed-in user (if any) and the
// flash message from the query string.
func (p Pages) data(r *http.Request, content any) view.Page {
	user, _ := auth.UserFromContext(r.Context())
	return view.Page{
		User:    user,
		Flash:   r.URL.Query().Get(FlashParam),
		GitHub:  p.showGitHub,
		Content: content,
	}
}

// render writes page with the given status.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the first byte of the body. The page
// is rendered into a buffer first, so a template error is known before
// anything is written and can still become a plain 500.
func (p Pages) render(w http.ResponseWriter, status int, page string, data view.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var buf bytes.Buffer
	if err := p.views.Render(&buf, page, data); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeError maps a domain error to an HTTP status and renders the error page.
//
// ERROR MAPPING:
//
//	apperror.ErrForbidden → 403
//	apperror.ErrNotFound  → 404
//	anything else         → 500, logged, with a generic message
//
// Validation, conflict and unauthorized errors never get here: handlers turn
// those into flashes or re-rendered forms.
//
// NEVER expose internal error text on a 500: it may contain SQL or file paths.
func (p Pages) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong on our side."

	var appErr *apperror.AppError
	switch {
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
		message = "You do not have access to this item."
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
		message = "The page you asked for does not exist."
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
	default:
		p.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}

	p.writeStatus(w, r, status, message)
}

// writeStatus renders the error page for status with message.
func (p Pages) writeStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.render(w, status, "error", p.data(r, errorContent{
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	}))
}

// NotFound renders the 404 page; the router uses it for unknown paths.
func (p Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.writeStatus(w, r, http.StatusNotFound, "The page you asked for does not exist.")
}

// redirectWithFlash sends the browser to target with a flash message.
// 303 See Other makes the browser follow up with a GET, even after a POST.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	q := u.Query()
	q.Set(FlashParam, message)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// redirect is redirectWithFlash without a message.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// parseID reads the {id} URL parameter. Anything but a positive integer
// is reported as NotFound, so /video/delete/abc is a plain 404.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperror.AppError{Err: apperror.ErrNotFound, Message: "The page you asked for does not exist."}
	}
	return id, nil
}

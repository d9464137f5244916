package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/view"
)

// recordingRenderer remembers what it was asked to render.
type recordingRenderer struct {
	page string
	data view.Page
	err  error
}

func (r *recordingRenderer) Render(w io.Writer, page string, data view.Page) error {
	r.page, r.data = page, data
	if r.err != nil {
		return r.err
	}
	_, err := fmt.Fprintf(w, "page=%s", page)
	return err
}

func newTestPages(views Renderer) Pages {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPages(views, logger, true)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.raw)
			got, err := parseID(r)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperror.ErrNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedirectWithFlash(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/register", nil)

	redirectWithFlash(rec, r, "/register", "Username already exists.")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/register?flash=Username+already+exists.", rec.Header().Get("Location"))
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"forbidden", apperror.Forbidden("You do not have access to this video."), http.StatusForbidden, "You do not have access to this video."},
		{"not found", fmt.Errorf("wrapped: %w", apperror.NotFound("video", 3)), http.StatusNotFound, "video not found with id 3"},
		{"internal", errors.New("sqlite: disk I/O error"), http.StatusInternalServerError, "Something went wrong on our side."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := &recordingRenderer{}
			rec := httptest.NewRecorder()

			newTestPages(views).writeError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "error", views.page)
			content, ok := views.data.Content.(errorContent)
			require.True(t, ok)
			assert.Equal(t, tt.message, content.Message)
			assert.NotContains(t, content.Message, "sqlite")
		})
	}
}

func TestRender_TemplateFailureIs500(t *testing.T) {
	views := &recordingRenderer{err: errors.New("boom")}
	rec := httptest.NewRecorder()

	newTestPages(views).render(rec, http.StatusOK, "dashboard", view.Page{})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "page=")
}

func TestPageData_UserFlashAndGitHub(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dashboard?flash=Saved", nil)
	user := &model.User{ID: 1, Username: "alice"}
	r = r.WithContext(auth.WithUser(r.Context(), user))

	data := newTestPages(&recordingRenderer{}).data(r, "content")

	assert.Same(t, user, data.User)
	assert.Equal(t, "Saved", data.Flash)
	assert.True(t, data.GitHub)
	assert.Equal(t, "content", data.Content)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "notes.pdf", displayName("0123456789abcdef0123456789abcdef_notes.pdf"))
	assert.Equal(t, "my_notes.pdf", displayName("0123456789abcdef0123456789abcdef_my_notes.pdf"))
	assert.Equal(t, "plain.pdf", displayName("plain.pdf"))
}

func TestDecodeValues_IgnoresUnknownFields(t *testing.T) {
	var form videoForm
	err := decodeValues(map[string][]string{
		"title":       {"Limits"},
		"youtube_url": {"https://youtu.be/dQw4w9WgXcQ"},
		"csrf":        {"ignored"},
	}, &form)

	require.NoError(t, err)
	assert.Equal(t, "Limits", form.Title)
	assert.Equal(t, "", form.Playlist)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", form.YouTubeURL)
}

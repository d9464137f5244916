package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/service"
	"github.com/sakif/learning-shelf/internal/view"
)

// multipartMemory is how much of an upload is held in memory before
// mime/multipart spills it to a temp file. The request size itself is capped
// by middleware.MaxBodySize.
const multipartMemory = 8 << 20

type videoForm struct {
	Title      string `formam:"title"`
	Playlist   string `formam:"playlist"`
	YouTubeURL string `formam:"youtube_url"`
}

type linkForm struct {
	Title   string `formam:"title"`
	LinkURL string `formam:"link_url"`
}

type titleForm struct {
	Title string `formam:"title"`
}

type playlistContent struct {
	Name   string
	Videos []model.Video
}

// CatalogHandler serves the dashboard, playlists and the edit/delete routes.
// Every route is behind auth.RequireIdentity.
type CatalogHandler struct {
	Pages
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(pages Pages, catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		Pages:   pages,
		catalog: catalog,
		logger:  logger,
	}
}

// currentUser returns the user RequireIdentity attached. Without one the
// browser is sent to /login and ok is false.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		redirect(w, r, "/login")
	}
	return user, ok
}

// HandleDashboard renders the playlist summary and resource list.
//
// HTTP: GET /dashboard
func (h *CatalogHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.renderDashboard(w, r, user)
}

func (h *CatalogHandler) renderDashboard(w http.ResponseWriter, r *http.Request, user *model.User) {
	dashboard, err := h.catalog.Dashboard(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, http.StatusOK, "dashboard", h.data(r, dashboard))
}

// HandleDashboardPost adds a video, a link or a PDF.
//
// HTTP: POST /dashboard
//
// THREE FORMS, ONE ROUTE:
// The branches are tried in order, keyed on which field the form carries:
//
//	youtube_url → add video
//	link_url    → add link
//	pdf_file    → upload PDF
//
// A branch that succeeds redirects back to /dashboard. A branch that is
// rejected (no video id in the URL, not a .pdf) falls through to the next one
// and finally to a plain render of the dashboard, without a message.
func (h *CatalogHandler) HandleDashboardPost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// ParseMultipartForm fills r.PostForm for urlencoded bodies too, and then
	// reports ErrNotMultipart.
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeStatus(w, r, http.StatusRequestEntityTooLarge, "The upload is too large.")
			return
		}
		h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
		return
	}

	if _, present := r.PostForm["youtube_url"]; present {
		var form videoForm
		if err := decodeValues(r.PostForm, &form); err != nil {
			h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
			return
		}
		if h.tryAdd(w, r, func() error {
			_, err := h.catalog.AddVideo(r.Context(), user.ID, form.Title, form.Playlist, form.YouTubeURL)
			return err
		}) {
			return
		}
	}

	if _, present := r.PostForm["link_url"]; present {
		var form linkForm
		if err := decodeValues(r.PostForm, &form); err != nil {
			h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
			return
		}
		if h.tryAdd(w, r, func() error {
			_, err := h.catalog.AddLinkResource(r.Context(), user.ID, form.Title, form.LinkURL)
			return err
		}) {
			return
		}
	}

	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["pdf_file"]; len(files) > 0 {
			var form titleForm
			if err := decodeValues(r.PostForm, &form); err != nil {
				h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
				return
			}
			file, err := files[0].Open()
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			handled := h.tryAdd(w, r, func() error {
				_, err := h.catalog.AddPDFResource(r.Context(), user.ID, form.Title, files[0].Filename, file)
				return err
			})
			file.Close()
			if handled {
				return
			}
		}
	}

	h.renderDashboard(w, r, user)
}

// tryAdd runs add and reports whether the response has been written.
// Validation failures are not written: the caller falls through.
func (h *CatalogHandler) tryAdd(w http.ResponseWriter, r *http.Request, add func() error) bool {
	err := add()
	switch {
	case err == nil:
		redirect(w, r, "/dashboard")
		return true
	case errors.Is(err, apperror.ErrValidation):
		h.logger.Debug("dashboard add rejected", slog.String("error", err.Error()))
		return false
	default:
		h.writeError(w, r, err)
		return true
	}
}

// HandlePlaylist lists the videos of one playlist.
//
// HTTP: GET /playlist/{name}
//
// An unknown or empty playlist redirects to /dashboard with
// "Playlist not found or empty.".
func (h *CatalogHandler) HandlePlaylist(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	name := playlistParam(r)

	videos, err := h.catalog.ListPlaylist(r.Context(), user.ID, name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(videos) == 0 {
		redirectWithFlash(w, r, "/dashboard", "Playlist not found or empty.")
		return
	}

	h.render(w, http.StatusOK, "playlist", h.data(r, playlistContent{Name: name, Videos: videos}))
}

// playlistParam returns the decoded {name} segment.
//
// chi routes on r.URL.RawPath when it is set ("a%2Fb" arrives still
// escaped) and on the already decoded r.URL.Path otherwise. Decoding in
// the second case would turn a literal "50%41" into "50A".
func playlistParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// HandleDeleteVideo deletes a video.
//
// HTTP: GET /video/delete/{id}
//
// Goes back to the video's playlist while it still has videos, otherwise to
// /dashboard.
func (h *CatalogHandler) HandleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	playlist, remaining, err := h.catalog.DeleteVideo(r.Context(), id, user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if remaining {
		redirect(w, r, view.PlaylistPath(playlist))
		return
	}
	redirect(w, r, "/dashboard")
}

// HandleEditVideo changes a video's title and playlist, then shows the
// (possibly new) playlist.
//
// HTTP: POST /video/edit/{id}
func (h *CatalogHandler) HandleEditVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var form videoForm
	if err := decodeForm(r, &form); err != nil {
		h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
		return
	}

	video, err := h.catalog.UpdateVideo(r.Context(), id, user.ID, form.Title, form.Playlist)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	redirect(w, r, view.PlaylistPath(video.Playlist))
}

// HandleDeleteResource deletes a resource and, for a PDF, its file.
//
// HTTP: GET /resource/delete/{id}
func (h *CatalogHandler) HandleDeleteResource(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.catalog.DeleteResource(r.Context(), id, user.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	redirect(w, r, "/dashboard")
}

// HandleEditResource renames a resource.
//
// HTTP: POST /resource/edit/{id}
func (h *CatalogHandler) HandleEditResource(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var form titleForm
	if err := decodeForm(r, &form); err != nil {
		h.writeStatus(w, r, http.StatusBadRequest, "Could not read the form.")
		return
	}

	if _, err := h.catalog.UpdateResource(r.Context(), id, user.ID, form.Title); err != nil {
		h.writeError(w, r, err)
		return
	}
	redirect(w, r, "/dashboard")
}

// HandleResourceFile streams an owned PDF.
//
// HTTP: GET /resource/file/{id}
func (h *CatalogHandler) HandleResourceFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rc, resource, err := h.catalog.OpenResourceFile(r.Context(), id, user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{
		"filename": displayName(resource.Content),
	}))
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log.
		h.logger.Warn("streaming pdf failed", slog.Int64("id", id), slog.String("error", err.Error()))
	}
}

// displayName strips the random token prefix from a stored filename.
func displayName(stored string) string {
	if _, name, ok := strings.Cut(stored, "_"); ok && name != "" {
		return name
	}
	return stored
}

// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, picks redirects and templates
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes (see catalog_test.go) and the handler never sees SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/repository"
	"github.com/sakif/learning-shelf/internal/ytutil"
)

// FileIntake stores and retrieves uploaded PDFs. *storage.Intake implements it.
type FileIntake interface {
	Accept(ctx context.Context, declaredFilename string, content io.Reader) (string, error)
	Remove(ctx context.Context, stored string)
	Open(ctx context.Context, stored string) (io.ReadCloser, error)
}

// CatalogService manages a user's videos and supplementary resources.
//
// OWNERSHIP:
// Every mutation goes through ownedVideo / ownedResource, which load the row
// and compare its owner with the caller. A missing row is apperror.ErrNotFound,
// somebody else's row is apperror.ErrForbidden; the handler maps them to 404/403.
type CatalogService struct {
	videos    repository.VideoRepository
	resources repository.ResourceRepository
	files     FileIntake
	logger    *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(
	videos repository.VideoRepository,
	resources repository.ResourceRepository,
	files FileIntake,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		videos:    videos,
		resources: resources,
		files:     files,
		logger:    logger,
	}
}

// Dashboard is everything the dashboard page shows.
type Dashboard struct {
	Playlists []model.PlaylistCount
	Resources []model.Resource
}

// playlistOrDefault maps a blank playlist name to model.DefaultPlaylist.
func playlistOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return model.DefaultPlaylist
	}
	return name
}

// =========================================================================
// ADD
// =========================================================================

// AddVideo saves a YouTube video under playlist (blank → "General").
//
// rawURL must contain a recognisable video ID; otherwise nothing is stored and
// the error wraps ytutil.ErrNoVideoID.
func (s *CatalogService) AddVideo(ctx context.Context, ownerID int64, title, playlist, rawURL string) (*model.Video, error) {
	videoID, ok := ytutil.ExtractVideoID(rawURL)
	if !ok {
		return nil, apperror.Invalid("youtube_url", ytutil.ErrNoVideoID, "Could not find a YouTube video in that link.")
	}

	video := &model.Video{
		UserID:   ownerID,
		Title:    title,
		VideoID:  videoID,
		Playlist: playlistOrDefault(playlist),
	}
	if err := s.videos.CreateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("service/catalog: adding video: %w", err)
	}

	s.logger.Info("video added",
		slog.Int64("id", video.ID),
		slog.Int64("userID", ownerID),
		slog.String("videoID", videoID),
		slog.String("playlist", video.Playlist),
	)
	return video, nil
}

// AddLinkResource saves a link. The URL is stored exactly as given.
func (s *CatalogService) AddLinkResource(ctx context.Context, ownerID int64, title, rawURL string) (*model.Resource, error) {
	resource := &model.Resource{
		UserID:  ownerID,
		Title:   title,
		Type:    model.ResourceLink,
		Content: rawURL,
	}
	if err := s.resources.CreateResource(ctx, resource); err != nil {
		return nil, fmt.Errorf("service/catalog: adding link: %w", err)
	}

	s.logger.Info("link added", slog.Int64("id", resource.ID), slog.Int64("userID", ownerID))
	return resource, nil
}

// AddPDFResource stores an uploaded PDF and records it.
//
// Non-PDF names fail with a validation error wrapping storage.ErrInvalidFileType
// and nothing is stored. If recording fails after the file was written, the
// file is removed again.
func (s *CatalogService) AddPDFResource(ctx context.Context, ownerID int64, title, filename string, content io.Reader) (*model.Resource, error) {
	stored, err := s.files.Accept(ctx, filename, content)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("service/catalog: storing upload: %w", err)
	}

	resource := &model.Resource{
		UserID:  ownerID,
		Title:   title,
		Type:    model.ResourcePDF,
		Content: stored,
	}
	if err := s.resources.CreateResource(ctx, resource); err != nil {
		s.files.Remove(ctx, stored)
		return nil, fmt.Errorf("service/catalog: adding pdf: %w", err)
	}

	s.logger.Info("pdf added",
		slog.Int64("id", resource.ID),
		slog.Int64("userID", ownerID),
		slog.String("file", stored),
	)
	return resource, nil
}

// =========================================================================
// READ
// =========================================================================

// ListVideos returns the owner's videos in insertion order.
func (s *CatalogService) ListVideos(ctx context.Context, ownerID int64) ([]model.Video, error) {
	videos, err := s.videos.ListVideosByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing videos: %w", err)
	}
	return videos, nil
}

// ListResources returns the owner's resources in insertion order.
func (s *CatalogService) ListResources(ctx context.Context, ownerID int64) ([]model.Resource, error) {
	resources, err := s.resources.ListResourcesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing resources: %w", err)
	}
	return resources, nil
}

// GroupVideosByPlaylist counts videos per playlist, in the order each
// playlist first appears in videos.
func GroupVideosByPlaylist(videos []model.Video) []model.PlaylistCount {
	groups := []model.PlaylistCount{}
	index := make(map[string]int)

	for _, v := range videos {
		i, seen := index[v.Playlist]
		if !seen {
			i = len(groups)
			index[v.Playlist] = i
			groups = append(groups, model.PlaylistCount{Name: v.Playlist})
		}
		groups[i].Count++
	}
	return groups
}

// Dashboard loads the playlist summary and resource list for ownerID.
func (s *CatalogService) Dashboard(ctx context.Context, ownerID int64) (*Dashboard, error) {
	videos, err := s.ListVideos(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	resources, err := s.ListResources(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Playlists: GroupVideosByPlaylist(videos),
		Resources: resources,
	}, nil
}

// ListPlaylist returns the owner's videos in the named playlist (exact match).
// An empty slice means the playlist does not exist for this owner.
func (s *CatalogService) ListPlaylist(ctx context.Context, ownerID int64, name string) ([]model.Video, error) {
	videos, err := s.videos.ListVideosByOwnerAndPlaylist(ctx, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: listing playlist: %w", err)
	}
	return videos, nil
}

// OpenResourceFile opens the file behind an owned PDF resource.
// Links have no file and report NotFound.
func (s *CatalogService) OpenResourceFile(ctx context.Context, id, ownerID int64) (io.ReadCloser, *model.Resource, error) {
	resource, err := s.ownedResource(ctx, id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if !resource.IsPDF() {
		return nil, nil, apperror.NotFound("file for resource", id)
	}

	rc, err := s.files.Open(ctx, resource.Content)
	if err != nil {
		s.logger.Warn("pdf file unavailable",
			slog.Int64("id", id),
			slog.String("file", resource.Content),
			slog.String("error", err.Error()),
		)
		return nil, nil, apperror.NotFound("file for resource", id)
	}
	return rc, resource, nil
}

// =========================================================================
// UPDATE / DELETE
// =========================================================================

// UpdateVideo changes title and playlist (blank → "General").
func (s *CatalogService) UpdateVideo(ctx context.Context, id, ownerID int64, title, playlist string) (*model.Video, error) {
	video, err := s.ownedVideo(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	video.Title = title
	video.Playlist = playlistOrDefault(playlist)
	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("service/catalog: updating video %d: %w", id, err)
	}

	s.logger.Info("video updated", slog.Int64("id", id), slog.String("playlist", video.Playlist))
	return video, nil
}

// DeleteVideo removes a video and reports the playlist it was in and whether
// the owner still has other videos there.
func (s *CatalogService) DeleteVideo(ctx context.Context, id, ownerID int64) (playlist string, remaining bool, err error) {
	video, err := s.ownedVideo(ctx, id, ownerID)
	if err != nil {
		return "", false, err
	}

	if err := s.videos.DeleteVideo(ctx, id); err != nil {
		return "", false, fmt.Errorf("service/catalog: deleting video %d: %w", id, err)
	}

	count, err := s.videos.CountVideosByOwnerAndPlaylist(ctx, ownerID, video.Playlist)
	if err != nil {
		return "", false, fmt.Errorf("service/catalog: counting playlist after delete: %w", err)
	}

	s.logger.Info("video deleted", slog.Int64("id", id), slog.String("playlist", video.Playlist))
	return video.Playlist, count > 0, nil
}

// UpdateResource changes a resource's title. Type and content never change.
func (s *CatalogService) UpdateResource(ctx context.Context, id, ownerID int64, title string) (*model.Resource, error) {
	resource, err := s.ownedResource(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	resource.Title = title
	if err := s.resources.UpdateResource(ctx, resource); err != nil {
		return nil, fmt.Errorf("service/catalog: updating resource %d: %w", id, err)
	}

	s.logger.Info("resource updated", slog.Int64("id", id))
	return resource, nil
}

// DeleteResource removes a resource. For a PDF the stored file is removed
// first on a best-effort basis; the record is deleted even if that fails.
func (s *CatalogService) DeleteResource(ctx context.Context, id, ownerID int64) error {
	resource, err := s.ownedResource(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if resource.IsPDF() {
		s.files.Remove(ctx, resource.Content)
	}

	if err := s.resources.DeleteResource(ctx, id); err != nil {
		return fmt.Errorf("service/catalog: deleting resource %d: %w", id, err)
	}

	s.logger.Info("resource deleted", slog.Int64("id", id), slog.String("type", string(resource.Type)))
	return nil
}

// =========================================================================
// OWNERSHIP GUARDS
// =========================================================================

func (s *CatalogService) ownedVideo(ctx context.Context, id, ownerID int64) (*model.Video, error) {
	video, err := s.videos.GetVideoByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.UserID != ownerID {
		s.logger.Warn("video access denied", slog.Int64("id", id), slog.Int64("userID", ownerID))
		return nil, apperror.Forbidden("You do not have access to this video.")
	}
	return video, nil
}

func (s *CatalogService) ownedResource(ctx context.Context, id, ownerID int64) (*model.Resource, error) {
	resource, err := s.resources.GetResourceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if resource.UserID != ownerID {
		s.logger.Warn("resource access denied", slog.Int64("id", id), slog.Int64("userID", ownerID))
		return nil, apperror.Forbidden("You do not have access to this resource.")
	}
	return resource, nil
}

// Package repository declares the storage interfaces the service layer depends on.
//
// Services take these interfaces, not *sqlite.DB, so tests can hand them in-memory
// fakes and the storage engine can change without touching business logic.
package repository

import (
	"context"
	"time"

	"github.com/sakif/learning-shelf/internal/model"
)

// UserRepository persists accounts.
//
// CreateUser returns an apperror.ErrConflict error when the username (or GitHub ID)
// is already taken. Lookups return apperror.ErrNotFound when nothing matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
}

// SessionRepository stores the server-side half of login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// VideoRepository persists videos. List methods return rows in insertion order.
type VideoRepository interface {
	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideoByID(ctx context.Context, id int64) (*model.Video, error)
	ListVideosByOwner(ctx context.Context, ownerID int64) ([]model.Video, error)
	ListVideosByOwnerAndPlaylist(ctx context.Context, ownerID int64, playlist string) ([]model.Video, error)
	CountVideosByOwnerAndPlaylist(ctx context.Context, ownerID int64, playlist string) (int, error)
	UpdateVideo(ctx context.Context, video *model.Video) error
	DeleteVideo(ctx context.Context, id int64) error
}

// ResourceRepository persists links and PDF records.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource *model.Resource) error
	GetResourceByID(ctx context.Context, id int64) (*model.Resource, error)
	ListResourcesByOwner(ctx context.Context, ownerID int64) ([]model.Resource, error)
	UpdateResource(ctx context.Context, resource *model.Resource) error
	DeleteResource(ctx context.Context, id int64) error
}

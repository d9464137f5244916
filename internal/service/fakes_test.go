package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/storage"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// Each one can be told to fail, to simulate a database error.

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	users     map[int64]*model.User
	nextID    int64
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("Username already exists.")
		}
		if u.GitHubID != nil && user.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			return apperror.Conflict("Username already exists.")
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
}

func (f *fakeUserRepo) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
}

type fakeVideoRepo struct {
	videos    []*model.Video
	nextID    int64
	createErr error
}

func (f *fakeVideoRepo) CreateVideo(_ context.Context, video *model.Video) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	video.ID = f.nextID
	video.CreatedAt = time.Now()
	stored := *video
	f.videos = append(f.videos, &stored)
	return nil
}

func (f *fakeVideoRepo) GetVideoByID(_ context.Context, id int64) (*model.Video, error) {
	for _, v := range f.videos {
		if v.ID == id {
			copied := *v
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("video", id)
}

func (f *fakeVideoRepo) ListVideosByOwner(_ context.Context, ownerID int64) ([]model.Video, error) {
	out := []model.Video{}
	for _, v := range f.videos {
		if v.UserID == ownerID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVideoRepo) ListVideosByOwnerAndPlaylist(_ context.Context, ownerID int64, playlist string) ([]model.Video, error) {
	out := []model.Video{}
	for _, v := range f.videos {
		if v.UserID == ownerID && v.Playlist == playlist {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (f *fakeVideoRepo) CountVideosByOwnerAndPlaylist(ctx context.Context, ownerID int64, playlist string) (int, error) {
	vs, _ := f.ListVideosByOwnerAndPlaylist(ctx, ownerID, playlist)
	return len(vs), nil
}

func (f *fakeVideoRepo) UpdateVideo(_ context.Context, video *model.Video) error {
	for _, v := range f.videos {
		if v.ID == video.ID {
			v.Title = video.Title
			v.Playlist = video.Playlist
			return nil
		}
	}
	return apperror.NotFound("video", video.ID)
}

func (f *fakeVideoRepo) DeleteVideo(_ context.Context, id int64) error {
	for i, v := range f.videos {
		if v.ID == id {
			f.videos = append(f.videos[:i], f.videos[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("video", id)
}

type fakeResourceRepo struct {
	resources []*model.Resource
	nextID    int64
	createErr error
}

func (f *fakeResourceRepo) CreateResource(_ context.Context, r *model.Resource) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Now()
	stored := *r
	f.resources = append(f.resources, &stored)
	return nil
}

func (f *fakeResourceRepo) GetResourceByID(_ context.Context, id int64) (*model.Resource, error) {
	for _, r := range f.resources {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("resource", id)
}

func (f *fakeResourceRepo) ListResourcesByOwner(_ context.Context, ownerID int64) ([]model.Resource, error) {
	out := []model.Resource{}
	for _, r := range f.resources {
		if r.UserID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeResourceRepo) UpdateResource(_ context.Context, r *model.Resource) error {
	for _, existing := range f.resources {
		if existing.ID == r.ID {
			existing.Title = r.Title
			return nil
		}
	}
	return apperror.NotFound("resource", r.ID)
}

func (f *fakeResourceRepo) DeleteResource(_ context.Context, id int64) error {
	for i, r := range f.resources {
		if r.ID == id {
			f.resources = append(f.resources[:i], f.resources[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("resource", id)
}

// memFiles is a storage.Store kept in memory, wrapped by a real storage.Intake.
type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{files: make(map[string][]byte)}
}

func (m *memFiles) Put(_ context.Context, name string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = b
	return nil
}

func (m *memFiles) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memFiles) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return storage.ErrNotExist
	}
	delete(m.files, name)
	return nil
}

func (m *memFiles) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	return out
}

func pdfBody() io.Reader {
	return strings.NewReader("%PDF-1.4 test")
}

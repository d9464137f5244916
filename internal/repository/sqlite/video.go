package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X, so a missing
// method shows up here rather than wherever *DB is first passed as a VideoRepository.
var _ repository.VideoRepository = (*DB)(nil)

// video_id is nullable in the schema; COALESCE lets it scan into a plain string.
const videoColumns = `id, user_id, title, COALESCE(video_id, '') AS video_id, playlist, created_at`

// CreateVideo inserts a video and fills in its ID and CreatedAt.
//
// PARAMETERIZED QUERIES (the ? placeholders):
// Titles and playlist names are free text typed by the user. They only ever
// reach SQLite as bound parameters, never through string concatenation.
func (db *DB) CreateVideo(ctx context.Context, video *model.Video) error {
	video.CreatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO videos (user_id, title, video_id, playlist, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		video.UserID,
		video.Title,
		video.VideoID,
		video.Playlist,
		video.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating video: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new video id: %w", err)
	}
	video.ID = id

	return nil
}

// GetVideoByID retrieves a single video. It does not check ownership; that is
// the service's job, which needs to tell "missing" apart from "not yours".
func (db *DB) GetVideoByID(ctx context.Context, id int64) (*model.Video, error) {
	var v model.Video

	err := db.conn.GetContext(ctx, &v,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	if err != nil {
		// sql.ErrNoRows just means "no matching row"; translate it to the
		// domain error so the handler can answer 404.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("video", id)
		}
		return nil, fmt.Errorf("sqlite: getting video %d: %w", id, err)
	}

	return &v, nil
}

// ListVideosByOwner returns all of the owner's videos, oldest first.
func (db *DB) ListVideosByOwner(ctx context.Context, ownerID int64) ([]model.Video, error) {
	videos := []model.Video{}

	err := db.conn.SelectContext(ctx, &videos,
		`SELECT `+videoColumns+` FROM videos WHERE user_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing videos for user %d: %w", ownerID, err)
	}

	return videos, nil
}

// ListVideosByOwnerAndPlaylist returns the owner's videos in one playlist, oldest first.
// Playlist names match exactly (case-sensitive).
func (db *DB) ListVideosByOwnerAndPlaylist(ctx context.Context, ownerID int64, playlist string) ([]model.Video, error) {
	videos := []model.Video{}

	err := db.conn.SelectContext(ctx, &videos,
		`SELECT `+videoColumns+` FROM videos
		 WHERE user_id = ? AND playlist = ?
		 ORDER BY id`,
		ownerID, playlist,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing playlist %q for user %d: %w", playlist, ownerID, err)
	}

	return videos, nil
}

// CountVideosByOwnerAndPlaylist counts the owner's videos in one playlist.
func (db *DB) CountVideosByOwnerAndPlaylist(ctx context.Context, ownerID int64, playlist string) (int, error) {
	var count int

	err := db.conn.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM videos WHERE user_id = ? AND playlist = ?`,
		ownerID, playlist,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting playlist %q for user %d: %w", playlist, ownerID, err)
	}

	return count, nil
}

// UpdateVideo saves the mutable fields (title, playlist).
// The owner and the YouTube ID never change.
func (db *DB) UpdateVideo(ctx context.Context, video *model.Video) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE videos SET title = ?, playlist = ? WHERE id = ?`,
		video.Title,
		video.Playlist,
		video.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating video %d: %w", video.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return checkAffected(rowsAffected, "video", video.ID)
}

// DeleteVideo removes a video by ID.
func (db *DB) DeleteVideo(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting video %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return checkAffected(rowsAffected, "video", id)
}

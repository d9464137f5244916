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

var _ repository.SessionRepository = (*DB)(nil)

// sessionRow is model.Session as stored: expires_at is Unix seconds, so
// expiry checks are plain integer comparisons in SQL.
type sessionRow struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt int64     `db:"expires_at"`
}

func (r sessionRow) toModel() *model.Session {
	return &model.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
	}
}

// CreateSession stores a new session. The caller generates the ID.
// ExpiresAt is truncated to whole seconds, the precision it is stored with.
func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.ExpiresAt = time.Unix(session.ExpiresAt.Unix(), 0).UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session for user %d: %w", session.UserID, err)
	}

	return nil
}

// GetSession returns the session with the given ID, expired or not; the caller
// decides what an expired session means.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var row sessionRow

	err := db.conn.GetContext(ctx, &row,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: "session not found",
			}
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	return row.toModel(), nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error:
// logging out twice should not fail.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions prunes every session whose expiry is at or before now,
// matching model.Session.Expired.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return deleted, nil
}

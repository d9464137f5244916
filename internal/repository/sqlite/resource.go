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

var _ repository.ResourceRepository = (*DB)(nil)

const resourceColumns = `id, user_id, title, type, content, created_at`

// CreateResource inserts a link or PDF record and fills in its ID and CreatedAt.
func (db *DB) CreateResource(ctx context.Context, resource *model.Resource) error {
	resource.CreatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO resources (user_id, title, type, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		resource.UserID,
		resource.Title,
		resource.Type,
		resource.Content,
		resource.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating %s resource: %w", resource.Type, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new resource id: %w", err)
	}
	resource.ID = id

	return nil
}

// GetResourceByID retrieves a single resource regardless of owner.
func (db *DB) GetResourceByID(ctx context.Context, id int64) (*model.Resource, error) {
	var r model.Resource

	err := db.conn.GetContext(ctx, &r,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("resource", id)
		}
		return nil, fmt.Errorf("sqlite: getting resource %d: %w", id, err)
	}

	return &r, nil
}

// ListResourcesByOwner returns the owner's resources, oldest first.
func (db *DB) ListResourcesByOwner(ctx context.Context, ownerID int64) ([]model.Resource, error) {
	resources := []model.Resource{}

	err := db.conn.SelectContext(ctx, &resources,
		`SELECT `+resourceColumns+` FROM resources WHERE user_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing resources for user %d: %w", ownerID, err)
	}

	return resources, nil
}

// UpdateResource saves the title. Type and content are fixed at creation.
func (db *DB) UpdateResource(ctx context.Context, resource *model.Resource) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE resources SET title = ? WHERE id = ?`,
		resource.Title,
		resource.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating resource %d: %w", resource.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return checkAffected(rowsAffected, "resource", resource.ID)
}

// DeleteResource removes the record only. Removing a PDF's file is the service's job.
func (db *DB) DeleteResource(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting resource %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return checkAffected(rowsAffected, "resource", id)
}

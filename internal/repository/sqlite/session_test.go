package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	s := &model.Session{ID: "sess-1", UserID: user.ID, ExpiresAt: expires}
	if err := db.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if s.CreatedAt.IsZero() {
		t.Error("CreateSession() did not set CreatedAt")
	}

	found, err := db.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if found.UserID != user.ID {
		t.Errorf("UserID = %d, want %d", found.UserID, user.ID)
	}
	if !found.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", found.ExpiresAt, expires)
	}
}

func TestSessionGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSession(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
}

func TestSessionCreate_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateSession(context.Background(), &model.Session{
		ID: "orphan", UserID: 12345, ExpiresAt: time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("CreateSession() for a missing user should fail the foreign key")
	}
}

func TestSessionDelete_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	s := &model.Session{ID: "sess-1", UserID: user.ID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := db.DeleteSession(context.Background(), "sess-1"); err != nil {
			t.Fatalf("DeleteSession() call %d error = %v", i+1, err)
		}
	}

	if _, err := db.GetSession(context.Background(), "sess-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	now := time.Now().UTC()

	sessions := []*model.Session{
		{ID: "old", UserID: user.ID, ExpiresAt: now.Add(-time.Minute)},
		{ID: "edge", UserID: user.ID, ExpiresAt: now},
		{ID: "live", UserID: user.ID, ExpiresAt: now.Add(time.Hour)},
	}
	for _, s := range sessions {
		if err := db.CreateSession(context.Background(), s); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", s.ID, err)
		}
	}

	deleted, err := db.DeleteExpiredSessions(context.Background(), now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, err := db.GetSession(context.Background(), "live"); err != nil {
		t.Errorf("live session was pruned: %v", err)
	}
}

func TestDeleteExpiredSessions_AgreesWithExpired(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Sub-second expiries and a non-UTC zone: stored seconds must still
	// compare the same way model.Session.Expired does.
	sessions := []*model.Session{
		{ID: "half-second-ago", UserID: user.ID, ExpiresAt: base.Add(-500 * time.Millisecond)},
		{ID: "other-zone", UserID: user.ID, ExpiresAt: base.Add(-time.Second).In(time.FixedZone("UTC+5", 5*3600))},
		{ID: "next-second", UserID: user.ID, ExpiresAt: base.Add(time.Second)},
	}
	for _, s := range sessions {
		if err := db.CreateSession(context.Background(), s); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", s.ID, err)
		}
	}

	deleted, err := db.DeleteExpiredSessions(context.Background(), base)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	for _, s := range sessions {
		_, err := db.GetSession(context.Background(), s.ID)
		pruned := errors.Is(err, apperror.ErrNotFound)
		if pruned != s.Expired(base) {
			t.Errorf("session %s: pruned = %v, Expired() = %v", s.ID, pruned, s.Expired(base))
		}
	}
}

func TestMigrate_ReplacesTextExpirySessions(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.conn.Exec(`DROP TABLE sessions`); err != nil {
		t.Fatalf("dropping sessions: %v", err)
	}
	if _, err := db.conn.Exec(`CREATE TABLE sessions (
		id TEXT PRIMARY KEY, user_id INTEGER NOT NULL, created_at DATETIME, expires_at DATETIME NOT NULL)`); err != nil {
		t.Fatalf("creating old sessions table: %v", err)
	}

	if err := db.migrate(); err != nil {
		t.Fatalf("migrate() error = %v", err)
	}

	var columnType string
	if err := db.conn.Get(&columnType,
		`SELECT type FROM pragma_table_info('sessions') WHERE name = 'expires_at'`); err != nil {
		t.Fatalf("reading column type: %v", err)
	}
	if columnType != "INTEGER" {
		t.Errorf("expires_at type = %q, want INTEGER", columnType)
	}
}

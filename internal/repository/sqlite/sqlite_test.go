package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/learning-shelf/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only for the test.
// - Fast: no disk I/O
// - Isolated: each test gets its own database
// - Clean: destroyed when the connection closes
//
// t.Helper() makes failures point at the CALLER's line, not this function.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{Username: username, PasswordHash: "$2a$04$notarealhash"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// MIGRATION TESTS
// =========================================================================

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)

	// New already migrated once; a second run must not fail on existing
	// tables, indexes or the github_id column.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestMigrate_ResourceTypeIsChecked(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	err := db.CreateResource(context.Background(), &model.Resource{
		UserID:  user.ID,
		Title:   "bad",
		Type:    model.ResourceType("video"),
		Content: "x",
	})
	if err == nil {
		t.Fatal("CreateResource() with unknown type should fail the CHECK constraint")
	}
}

func TestCheckAffected(t *testing.T) {
	if err := checkAffected(1, "video", 1); err != nil {
		t.Errorf("checkAffected(1) = %v, want nil", err)
	}
	if err := checkAffected(0, "video", 7); err == nil {
		t.Error("checkAffected(0) = nil, want NotFound")
	}
}

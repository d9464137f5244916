package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/model"
)

func createTestResource(t *testing.T, db *DB, ownerID int64, typ model.ResourceType, title, content string) *model.Resource {
	t.Helper()
	r := &model.Resource{UserID: ownerID, Title: title, Type: typ, Content: content}
	if err := db.CreateResource(context.Background(), r); err != nil {
		t.Fatalf("failed to create test resource: %v", err)
	}
	return r
}

func TestResourceCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	link := createTestResource(t, db, user.ID, model.ResourceLink, "Docs", "not even a url")
	if link.ID == 0 || link.CreatedAt.IsZero() {
		t.Fatalf("CreateResource() did not fill ID/CreatedAt: %+v", link)
	}

	found, err := db.GetResourceByID(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("GetResourceByID() error = %v", err)
	}
	if found.Type != model.ResourceLink {
		t.Errorf("Type = %q, want %q", found.Type, model.ResourceLink)
	}
	// Link content is stored verbatim, without URL validation.
	if found.Content != "not even a url" {
		t.Errorf("Content = %q, want %q", found.Content, "not even a url")
	}
	if found.IsPDF() {
		t.Error("IsPDF() = true for a link")
	}
}

func TestResourceGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetResourceByID(context.Background(), 77)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetResourceByID() error = %v, want ErrNotFound", err)
	}
}

func TestResourceListByOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	createTestResource(t, db, alice.ID, model.ResourceLink, "one", "https://a")
	createTestResource(t, db, bob.ID, model.ResourceLink, "bob's", "https://b")
	createTestResource(t, db, alice.ID, model.ResourcePDF, "two", "abc_notes.pdf")

	resources, err := db.ListResourcesByOwner(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListResourcesByOwner() error = %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("len = %d, want 2", len(resources))
	}
	if resources[0].Title != "one" || resources[1].Title != "two" {
		t.Errorf("order = [%q %q], want [one two]", resources[0].Title, resources[1].Title)
	}
	if !resources[1].IsPDF() {
		t.Error("second resource should be a PDF")
	}
}

func TestResourceUpdate_OnlyTitleChanges(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	r := createTestResource(t, db, user.ID, model.ResourcePDF, "old", "abc_notes.pdf")

	r.Title = "new"
	r.Content = "tampered.pdf"
	if err := db.UpdateResource(context.Background(), r); err != nil {
		t.Fatalf("UpdateResource() error = %v", err)
	}

	found, err := db.GetResourceByID(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetResourceByID() error = %v", err)
	}
	if found.Title != "new" {
		t.Errorf("Title = %q, want new", found.Title)
	}
	if found.Content != "abc_notes.pdf" {
		t.Errorf("Content = %q, want it unchanged", found.Content)
	}
}

func TestResourceDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	r := createTestResource(t, db, user.ID, model.ResourceLink, "bye", "https://x")

	if err := db.DeleteResource(context.Background(), r.ID); err != nil {
		t.Fatalf("DeleteResource() error = %v", err)
	}
	if err := db.DeleteResource(context.Background(), r.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteResource() error = %v, want ErrNotFound", err)
	}
}

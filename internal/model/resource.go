package model

import "time"

// ResourceType says how Resource.Content is to be read.
type ResourceType string

const (
	// ResourceLink: Content is the URL exactly as the user typed it.
	ResourceLink ResourceType = "link"
	// ResourcePDF: Content is the stored filename inside the upload store.
	ResourcePDF ResourceType = "pdf"
)

// Resource is a supplementary learning resource: a link or an uploaded PDF.
// Only Title changes after creation.
type Resource struct {
	ID        int64        `json:"id"        db:"id"`
	UserID    int64        `json:"userId"    db:"user_id"`
	Title     string       `json:"title"     db:"title"`
	Type      ResourceType `json:"type"      db:"type"`
	Content   string       `json:"content"   db:"content"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
}

// IsPDF reports whether the resource is backed by an uploaded file.
func (r *Resource) IsPDF() bool {
	return r.Type == ResourcePDF
}

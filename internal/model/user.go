// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// PasswordHash holds the bcrypt output (salt and cost included), never the plaintext.
// Accounts created through GitHub sign-in have an empty hash, which bcrypt can never
// match, so they can only sign in through GitHub.
//
// WHY GitHubID *int64?
// The column is nullable: most accounts never link GitHub. A nil pointer maps to SQL
// NULL, and the UNIQUE constraint on github_id ignores NULLs.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"githubId"  db:"github_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Session is the server-side half of a login. The signed cookie only carries the
// session ID; deleting the row logs the browser out even if the cookie is replayed.
type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Expired reports whether the session is no longer usable at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

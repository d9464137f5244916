package model

import "time"

// DefaultPlaylist is the playlist a video lands in when none is given.
const DefaultPlaylist = "General"

// Video is a YouTube video saved by a user.
//
// VideoID is the canonical 11-character YouTube identifier, not the pasted URL.
// Playlist is a free-text label; there is no playlist table.
type Video struct {
	ID        int64     `json:"id"        db:"id"`
	UserID    int64     `json:"userId"    db:"user_id"`
	Title     string    `json:"title"     db:"title"`
	VideoID   string    `json:"videoId"   db:"video_id"`
	Playlist  string    `json:"playlist"  db:"playlist"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// PlaylistCount is one row of the dashboard's playlist summary.
type PlaylistCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

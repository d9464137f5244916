// Package ytutil recognises YouTube video IDs in pasted URLs and builds the
// URLs the views need from an ID.
package ytutil

import (
	"errors"
	"net/url"
	"regexp"
)

// ErrNoVideoID is returned when a URL carries no recognisable video ID.
var ErrNoVideoID = errors.New("ytutil: no YouTube video id in url")

// videoIDPattern matches 11 ID characters right after "v=" or a "/".
// That covers watch?v=, youtu.be/, /embed/ and /shorts/ forms; the leftmost
// match wins.
var videoIDPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// ExtractVideoID returns the first 11-character video ID found in rawURL.
//
//	https://www.youtube.com/watch?v=dQw4w9WgXcQ → dQw4w9WgXcQ, true
//	https://youtu.be/dQw4w9WgXcQ              → dQw4w9WgXcQ, true
//	not a url                                 → "", false
func ExtractVideoID(rawURL string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EmbedURL is the iframe source for a video.
func EmbedURL(id string) string {
	return "https://www.youtube.com/embed/" + url.PathEscape(id)
}

// WatchURL links to the video on youtube.com.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

// ThumbnailURL is the medium-quality thumbnail image.
func ThumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + url.PathEscape(id) + "/mqdefault.jpg"
}

package middleware

import (
	"net/http"
)

// MaxBodySize rejects request bodies larger than limit bytes with 413.
//
// A declared Content-Length over the limit is refused before the handler runs.
// Bodies without a length (chunked) are wrapped in http.MaxBytesReader, so
// reading past the limit fails with *http.MaxBytesError, which form-parsing
// handlers turn into a 413.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

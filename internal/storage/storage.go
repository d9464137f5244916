// Package storage accepts uploaded PDF files and keeps them in a Store.
//
// Intake is the only entry point the rest of the application uses: it checks
// the declared filename, sanitises it, gives it a random prefix and writes the
// bytes through whichever Store backend is configured (local disk or S3).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/sakif/learning-shelf/internal/apperror"
)

var (
	// ErrInvalidFileType is returned for uploads whose name does not end in ".pdf".
	ErrInvalidFileType = errors.New("storage: only .pdf files are accepted")
	// ErrNotExist is returned by Store.Open when no file has the given name.
	ErrNotExist = errors.New("storage: file does not exist")
	// ErrInvalidName is returned by a Store for names that could escape it.
	ErrInvalidName = errors.New("storage: invalid stored name")
)

// Store is where uploaded bytes live. Names are flat: no directories.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// Intake turns an upload into a stored file.
type Intake struct {
	store    Store
	newToken func() string
}

// NewIntake creates an Intake writing to store.
func NewIntake(store Store) *Intake {
	return &Intake{store: store, newToken: randomToken}
}

// Accept stores content under a collision-resistant name derived from
// declaredFilename and returns that name.
//
// Only names ending in ".pdf" (lower case, as typed) are accepted; anything else
// fails with a validation error wrapping ErrInvalidFileType and nothing is written.
func (in *Intake) Accept(ctx context.Context, declaredFilename string, content io.Reader) (string, error) {
	if !strings.HasSuffix(declaredFilename, ".pdf") {
		return "", apperror.Invalid("pdf_file", ErrInvalidFileType, "Only PDF files are allowed.")
	}

	// The ".pdf" suffix guarantees the sanitised name keeps at least "pdf".
	stored := in.newToken() + "_" + SecureFilename(declaredFilename)

	if err := in.store.Put(ctx, stored, content); err != nil {
		return "", fmt.Errorf("storage: saving upload: %w", err)
	}
	return stored, nil
}

// Remove deletes a stored file. It is best-effort: a missing file or a backend
// failure is ignored, so removing a record never fails because of its file.
func (in *Intake) Remove(ctx context.Context, stored string) {
	_ = in.store.Delete(ctx, stored)
}

// Open reads back a stored file. The caller closes it.
func (in *Intake) Open(ctx context.Context, stored string) (io.ReadCloser, error) {
	return in.store.Open(ctx, stored)
}

// randomToken is 32 lowercase hex characters (a v4 UUID without dashes).
func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SecureFilename reduces a user-supplied filename to a safe, flat ASCII name.
//
//  1. Unicode is decomposed (NFKD) and non-ASCII runes dropped, so "résumé" → "resume"
//  2. Path separators become spaces, then whitespace runs become single "_"
//  3. Everything outside [A-Za-z0-9_.-] is dropped
//  4. Leading and trailing "." and "_" are trimmed, so ".." and hidden names vanish
//
// The result may be empty for names made only of symbols or non-Latin script.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var ascii strings.Builder
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '/' || r == '\\' {
			r = ' '
		}
		ascii.WriteRune(r)
	}

	joined := strings.Join(strings.Fields(ascii.String()), "_")

	var out strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			out.WriteRune(r)
		}
	}

	return strings.Trim(out.String(), "._")
}

// ValidName reports whether name is safe to use as a flat key inside a Store.
// Backends call it before touching the filesystem or bucket.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

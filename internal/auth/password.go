package auth

// WHY BCRYPT?
// bcrypt is a password hashing function designed to be slow, which makes
// brute-force attacks expensive. It generates a random salt per hash and
// embeds it (with the cost) in the output, so the users table needs a single
// password_hash column.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used when none is configured.
//
// COST TUNING RULE OF THUMB:
// Set cost so that hashing takes ~200–300ms on your production hardware.
// Too low → easy to crack. Too high → login is sluggish.
const DefaultPasswordCost = 12

// maxPasswordBytes is bcrypt's input limit. Longer inputs are silently
// truncated by bcrypt, so they are rejected instead.
const maxPasswordBytes = 72

var (
	// ErrPasswordTooLong is returned by Hash for inputs over 72 bytes.
	ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")
	// ErrInvalidPassword is returned by Verify when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: production
// reads it from config, tests pass 4 (bcrypt.MinCost) to stay fast.
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// A cost outside bcrypt's accepted range falls back to DefaultPasswordCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &PasswordService{cost: cost}
}

// Cost reports the work factor new hashes are created with.
func (p *PasswordService) Cost() int {
	return p.cost
}

// Hash hashes the given plaintext password with bcrypt.
//
// Store the result directly in the database. It includes the salt and cost;
// bcrypt.CompareHashAndPassword knows how to decode it.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// It returns nil on a match and ErrInvalidPassword on a mismatch.
//
// An empty hash (accounts created through GitHub sign-in) never matches.
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword compares in constant time, so response time
// does not leak how much of the password was right.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		p.CompareDummy(plaintext)
		return ErrInvalidPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// CompareDummy runs one bcrypt comparison against a fixed hash of the same
// cost and discards the result. Sign-in paths that fail before reaching a real
// hash (unknown username, password-less account) call it so that they take as
// long as a wrong password does.
func (p *PasswordService) CompareDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(p.dummyHash(), []byte(plaintext))
}

// dummyHash is generated on first use, at p.cost.
func (p *PasswordService) dummyHash() []byte {
	p.dummyOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("learning-shelf"), p.cost)
		if err != nil {
			// Unreachable for a valid cost; an empty hash fails fast instead.
			return
		}
		p.dummy = hashed
	})
	return p.dummy
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rs/xid"

	"github.com/sakif/learning-shelf/internal/apperror"
	"github.com/sakif/learning-shelf/internal/auth"
	"github.com/sakif/learning-shelf/internal/model"
	"github.com/sakif/learning-shelf/internal/repository"
)

// invalidCredentials is the one message for every failed sign-in, so a caller
// cannot tell an unknown username from a wrong password.
const invalidCredentials = "Invalid credentials"

// AuthService owns the account rules:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (DB)
//	                   ↘ PasswordService (bcrypt)
//
// It never touches cookies or sessions; the handler asks auth.SessionManager
// to sign the user in once AuthService has said who they are.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates an account with a bcrypt-hashed password.
//
// Usernames are exact, case-sensitive strings. A taken username fails with
// apperror.ErrConflict and leaves the existing account untouched; the UNIQUE
// constraint decides races between two simultaneous registrations.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" {
		return nil, apperror.ValidationFailed("username", "Username is required.")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "Password is required.")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.Invalid("password", err, "Password must be 72 bytes or fewer.")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration rejected: username taken", slog.String("username", username))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks a username and password.
//
// Unknown usernames and wrong passwords both return
// apperror.Unauthorized("Invalid credentials").
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Pay the bcrypt cost anyway so response time does not reveal
			// which usernames exist.
			s.passwords.CompareDummy(password)
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("sign-in rejected", slog.Int64("userID", user.ID))
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %d: %w", user.ID, err)
	}

	return user, nil
}

// LoginOrRegisterGitHub maps a GitHub account to a local user.
//
// The first sign-in creates a password-less account named after the GitHub
// login. When that name is already taken locally, "-<githubID>" is appended,
// and when a local user registered that name too, "-<xid>" is. Running out of
// candidates is apperror.ErrConflict.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	existing, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up github id %d: %w", ghUser.ID, err)
	}

	githubID := ghUser.ID
	candidates := []string{
		ghUser.Login,
		ghUser.Login + "-" + strconv.FormatInt(ghUser.ID, 10),
		ghUser.Login + "-" + xid.New().String(),
	}

	user := &model.User{GitHubID: &githubID}
	for _, name := range candidates {
		user.Username = name
		err = s.users.CreateUser(ctx, user)
		if !errors.Is(err, apperror.ErrConflict) {
			break
		}
	}
	if errors.Is(err, apperror.ErrConflict) {
		s.logger.Warn("GitHub sign-in: no free username", slog.String("login", ghUser.Login))
		return nil, apperror.Conflict("Could not pick a username for your GitHub account. Please register instead.")
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user %q: %w", ghUser.Login, err)
	}

	s.logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.Int64("githubID", ghUser.ID),
	)
	return user, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

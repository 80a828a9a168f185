package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/form"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

const (
	msgUsernameTaken = "A user with that username already exists."
	msgBadLogin      = "Please enter a correct username and password. Note that both fields may be case-sensitive."

	msgBadOldPassword = "Your old password was entered incorrectly. Please enter it again."
)

// githubUsernameAttempts bounds the suffix search in uniqueUsername.
const githubUsernameAttempts = 50

var usernameStrip = regexp.MustCompile(`[^\w.@+-]`)

// AuthService owns accounts: signup, password login and GitHub login.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                              ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never touches cookies; handlers turn an AuthResult into a session.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued session token so the
// handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup validates the form, stores the account and logs it in.
func (s *AuthService) Signup(ctx context.Context, in form.SignupInput) (*AuthResult, error) {
	in.Clean()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password1)
	if err != nil {
		return nil, apperror.ValidationFailed("password1", "Ensure this value has at most 72 bytes.")
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", msgUsernameTaken)
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Username, err)
	}

	s.logger.Info("user signed up", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return s.issue(user)
}

// Login checks a username/password pair. Unknown users and wrong passwords
// get the same form error.
func (s *AuthService) Login(ctx context.Context, in form.LoginInput) (*AuthResult, error) {
	in.Clean()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("__all__", msgBadLogin)
		}
		return nil, fmt.Errorf("service/auth: loading user %q: %w", in.Username, err)
	}

	// GitHub-only accounts have no password to match.
	if user.PasswordHash == "" {
		return nil, apperror.ValidationFailed("__all__", msgBadLogin)
	}
	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("failed login", slog.String("username", in.Username))
			return nil, apperror.ValidationFailed("__all__", msgBadLogin)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return s.issue(user)
}

// ChangePassword replaces the password of a logged in user after checking
// the old one. Accounts created through GitHub have no old password and
// cannot use it.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, in form.PasswordChangeInput) error {
	if user == nil {
		return apperror.Forbidden("log in to change your password")
	}

	in.Username, in.Email = user.Username, user.Email
	if err := in.Validate(); err != nil {
		return err
	}

	if user.PasswordHash == "" {
		return apperror.ValidationFailed("old_password", msgBadOldPassword)
	}
	if err := s.passwords.Verify(user.PasswordHash, in.OldPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return apperror.ValidationFailed("old_password", msgBadOldPassword)
		}
		return fmt.Errorf("service/auth: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(in.NewPassword1)
	if err != nil {
		return apperror.ValidationFailed("new_password1", "Ensure this value has at most 72 bytes.")
	}

	updated := *user
	updated.PasswordHash = hash
	if err := s.users.Update(ctx, &updated); err != nil {
		return fmt.Errorf("service/auth: updating password of user %d: %w", user.ID, err)
	}
	user.PasswordHash = hash

	s.logger.Info("password changed", slog.Int64("userID", user.ID))
	return nil
}

// LoginOrRegisterGitHub runs after the OAuth code exchange. A known GitHub
// ID logs that account in; otherwise a new account is created with a
// username derived from the GitHub login.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
		if ghUser.Email != "" && user.Email != ghUser.Email {
			user.Email = ghUser.Email
			if err := s.users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("service/auth: updating user %d: %w", user.ID, err)
			}
		}
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerGitHub(ctx, ghUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: loading GitHub user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(user)
}

func (s *AuthService) registerGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	first, last, _ := strings.Cut(strings.TrimSpace(ghUser.Name), " ")
	base := githubUsername(ghUser)

	for i := 0; i < githubUsernameAttempts; i++ {
		username := base
		if i > 0 {
			username = base + "-" + strconv.Itoa(i)
		}

		user := &model.User{
			Username:  username,
			Email:     ghUser.Email,
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			GitHubID:  ghUser.ID,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating GitHub user %d: %w", ghUser.ID, err)
		}

		// Lost a race with a concurrent callback for the same GitHub ID.
		if existing, err := s.users.GetByGitHubID(ctx, ghUser.ID); err == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("service/auth: no free username for GitHub login %q", ghUser.Login)
}

// githubUsername keeps the characters a username may contain.
func githubUsername(ghUser *auth.GitHubUser) string {
	name := usernameStrip.ReplaceAllString(ghUser.Login, "")
	if name == "" {
		name = "github" + strconv.FormatInt(ghUser.ID, 10)
	}
	// Leave room for a "-NN" suffix.
	if r := []rune(name); len(r) > form.MaxUsernameLength-4 {
		name = string(r[:form.MaxUsernameLength-4])
	}
	return name
}

// GetUserByID loads the user behind a session.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("service/auth: user ID must be positive")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

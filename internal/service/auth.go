package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-graph/internal/apperror"
	"github.com/sakif/social-graph/internal/auth"
	"github.com/sakif/social-graph/internal/events"
	"github.com/sakif/social-graph/internal/model"
	"github.com/sakif/social-graph/internal/repository"
	"github.com/sakif/social-graph/internal/validate"
)

// invalidCredentials is the single message for every failed login, so the
// response does not reveal which half was wrong.
const invalidCredentials = "invalid email or password"

// AuthService registers accounts and signs users in. It hands out tokens but
// never interprets them; auth.RequireAuth does that.
type AuthService struct {
	base
	tokens    *auth.TokenService
	passwords *auth.PasswordService
}

func NewAuthService(
	repo repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	publisher events.Publisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		base:      newBase(repo, nil, publisher, logger),
		tokens:    tokens,
		passwords: passwords,
	}
}

// AuthResult is returned from every successful sign-in.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account. image is the reference returned by the upload
// store, or empty. The e-mail is normalised and must not be taken.
func (s *AuthService) Register(ctx context.Context, in validate.UserInput, image string) (*AuthResult, error) {
	if err := validate.Registration(in); err != nil {
		return nil, err
	}
	in = in.Normalize()

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "a user with this email is already registered",
			Field:   "email",
		}
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		Image:        image,
		AboutMe:      in.AboutMe,
		Posts:        []model.Post{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	s.publish(ctx, events.SubjectUserRegistered, events.UserEvent{UserID: user.ID, Email: user.Email})

	return s.issue(user)
}

// Login checks credentials. Unknown e-mail and wrong password both return
// the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, in validate.LoginInput) (*AuthResult, error) {
	if err := validate.Login(in); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, validate.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginWithGitHub signs in the account whose e-mail matches the GitHub
// profile, creating one without a password if none exists.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	email := validate.NormalizeEmail(ghUser.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "GitHub account has no e-mail address")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info("user authenticated via GitHub",
			slog.String("userID", user.ID),
			slog.String("login", ghUser.Login),
		)
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}

	first, last := ghUser.FirstLast()
	user = &model.User{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Image:     ghUser.AvatarURL,
		Posts:     []model.Post{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user registered via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", ghUser.Login),
	)
	s.publish(ctx, events.SubjectUserRegistered, events.UserEvent{UserID: user.ID, Email: user.Email})

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

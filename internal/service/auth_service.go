package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdusco/shorty/internal"
	"github.com/abdusco/shorty/internal/metrics"
	"github.com/abdusco/shorty/internal/repo"
	"github.com/rs/zerolog/log"
)

const (
	MinPasswordLen = 6
	// bcrypt ignores input past this length.
	MaxPasswordLen = 72
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenIssuer interface {
	Issue(user *internal.User) (string, error)
}

type AuthService struct {
	users  repo.UserRepo
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(users repo.UserRepo, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  *internal.User
	Token string
}

// NormalizeEmail trims and lower-cases an address so lookups ignore case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, internal.ErrMissingFields
	}
	if len(in.Password) < MinPasswordLen {
		return nil, internal.ErrPasswordTooShort
	}
	if len(in.Password) > MaxPasswordLen {
		return nil, internal.ErrPasswordTooLong
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, internal.ErrEmailTaken
	} else if !errors.Is(err, internal.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	// Create enforces email uniqueness itself, covering concurrent registrations.
	user, err := s.users.Create(ctx, email, name, hash)
	if err != nil {
		return nil, err
	}

	metrics.UsersRegistered.Inc()
	log.Info().Int64("user_id", user.ID).Msg("user registered")

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, internal.ErrMissingFields
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, in.Password); err != nil {
		log.Debug().Int64("user_id", user.ID).Msg("password mismatch")
		return nil, internal.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (*internal.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) issue(user *internal.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

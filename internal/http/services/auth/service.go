// Package auth implements the password account flows: register, login,
// refresh and profile lookup.
package auth

import (
	"context"
	"errors"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
	"github.com/samuvale95/swift-study-box-be/internal/security/password"
)

var (
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers wrong password, unknown email, inactive
	// account and OAuth-only accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Deps contains the dependencies of the auth service.
type Deps struct {
	Users  repository.UserRepository
	Issuer *jwt.Issuer
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	return &Service{d: d}
}

// Result is a completed authentication: session pair plus user.
type Result struct {
	Pair jwt.Pair
	User *repository.User
}

func (s *Service) Register(ctx context.Context, email, name, plain string) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"))

	hash, err := password.Hash(password.Default, plain)
	if err != nil {
		return nil, err
	}

	user, err := s.d.Users.Create(ctx, repository.CreateUserInput{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	pair, err := s.d.Issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	log.Info("user registered", logger.UserID(user.ID))
	return &Result{Pair: pair, User: user}, nil
}

func (s *Service) Login(ctx context.Context, email, plain string) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"))

	user, err := s.d.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	// OAuth-only accounts have no hash and cannot log in with a password
	if user.PasswordHash == nil || !password.Verify(plain, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.d.Users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn("last login not recorded", logger.Err(err), logger.UserID(user.ID))
	}

	pair, err := s.d.Issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	log.Info("user logged in", logger.UserID(user.ID))
	return &Result{Pair: pair, User: user}, nil
}

// Refresh verifies the refresh token, re-checks the account and mints a new
// pair. A deactivated or deleted account invalidates its refresh tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.d.Issuer.Verify(refreshToken, jwt.KindRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.d.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, jwt.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, jwt.ErrInvalidToken
	}

	pair, err := s.d.Issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Result{Pair: pair, User: user}, nil
}

// CurrentUser loads the account behind a verified access token subject.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*repository.User, error) {
	return s.d.Users.GetByID(ctx, userID)
}

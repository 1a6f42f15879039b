// Package oauth orchestrates the federated login flow: state issuance,
// provider redirect, callback exchange and session issuance.
package oauth

import (
	"context"
	"fmt"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

// Deps contains the dependencies of the oauth service.
type Deps struct {
	Registry *providers.Registry
	States   *StateStore
	Resolver *Resolver
	Users    repository.UserRepository
	Issuer   *jwt.Issuer

	// RequireState enforces state verification on callbacks. Defaults to
	// true in config; only explicit configuration relaxes it.
	RequireState bool
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	return &Service{d: d}
}

// Providers returns the configured providers in registration order.
func (s *Service) Providers() []providers.Provider {
	return s.d.Registry.List()
}

// StartResult is the outcome of a login start.
type StartResult struct {
	AuthorizeURL string
	State        string
}

// Start issues a state for the provider and builds the redirect URL.
// callerState, when non-empty, is recorded instead of a generated value.
func (s *Service) Start(ctx context.Context, provider, callerState string) (*StartResult, error) {
	p, err := s.d.Registry.Get(provider)
	if err != nil {
		return nil, err
	}

	state, err := s.d.States.Issue(p.Name(), callerState)
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Debug("oauth flow started",
		logger.Layer("service"), logger.Component("oauth"), logger.Provider(p.Name()))

	return &StartResult{
		AuthorizeURL: p.AuthorizeURL(state),
		State:        state,
	}, nil
}

// CallbackRequest carries the provider redirect parameters.
type CallbackRequest struct {
	Provider string
	Code     string
	State    string
	Error    string
}

// CallbackResult is a completed login: a session pair plus the user.
type CallbackResult struct {
	Pair jwt.Pair
	User *repository.User
}

// Callback runs the second half of the flow. The first failing step wins;
// there is no automatic restart.
func (s *Service) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"), logger.Component("oauth"), logger.Provider(req.Provider))

	// A provider error trumps whatever else came with the redirect.
	if req.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderDenied, req.Error)
	}

	p, err := s.d.Registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	if req.State == "" {
		if s.d.RequireState {
			return nil, ErrInvalidState
		}
		log.Warn("callback without state accepted, state verification disabled")
	} else {
		boundProvider, err := s.d.States.Consume(req.State)
		if err != nil {
			return nil, err
		}
		if boundProvider != p.Name() {
			return nil, ErrInvalidState
		}
	}

	if req.Code == "" {
		return nil, ErrMissingCode
	}

	ts, err := p.Exchange(ctx, req.Code)
	if err != nil {
		log.Warn("token exchange failed", logger.Err(err))
		return nil, err
	}

	identity, err := p.ResolveIdentity(ctx, ts)
	if err != nil {
		log.Warn("identity resolution failed", logger.Err(err))
		return nil, err
	}

	user, err := s.d.Resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.d.Users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn("last login not recorded", logger.Err(err), logger.UserID(user.ID))
	}

	pair, err := s.d.Issuer.IssuePair(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	log.Info("oauth login completed", logger.UserID(user.ID))
	return &CallbackResult{Pair: pair, User: user}, nil
}

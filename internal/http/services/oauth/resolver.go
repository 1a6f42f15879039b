package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

// Resolver maps a provider identity onto a local account: existing link
// first, then a verified-email merge, then provisioning a new user.
type Resolver struct {
	users repository.UserRepository
}

func NewResolver(users repository.UserRepository) *Resolver {
	return &Resolver{users: users}
}

func (r *Resolver) Resolve(ctx context.Context, id *providers.Identity) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.resolver"))

	// 1) Already linked
	user, err := r.users.GetByProviderSubject(ctx, id.Provider, id.Subject)
	if err == nil {
		return r.refreshProfile(ctx, user, id)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// 2) Merge onto an existing account when the provider vouches for the
	// email. An unverified email never merges.
	if id.Email != "" && id.EmailVerified {
		user, err = r.users.GetByEmail(ctx, id.Email)
		if err == nil {
			if user.OAuthProvider != nil {
				// Linked to a different identity already
				return nil, fmt.Errorf("%w: email %s is linked to another provider", ErrAccountConflict, maskEmail(id.Email))
			}
			if err := r.users.LinkProvider(ctx, user.ID, id.Provider, id.Subject); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return r.reread(ctx, id)
				}
				return nil, err
			}
			log.Info("provider linked to existing account",
				logger.UserID(user.ID), logger.Provider(id.Provider))
			return r.users.GetByID(ctx, user.ID)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	// 3) Provision
	provider, subject := id.Provider, id.Subject
	input := repository.CreateUserInput{
		Email:          id.Email,
		Name:           id.Name,
		IsActive:       true,
		IsVerified:     id.EmailVerified,
		OAuthProvider:  &provider,
		OAuthSubjectID: &subject,
	}
	if id.Picture != "" {
		avatar := id.Picture
		input.Avatar = &avatar
	}

	user, err = r.users.Create(ctx, input)
	if err == nil {
		log.Info("user provisioned",
			logger.UserID(user.ID),
			logger.Provider(id.Provider),
			logger.String("email_masked", maskEmail(id.Email)),
		)
		return user, nil
	}
	if errors.Is(err, repository.ErrConflict) {
		// A doubled callback can race us to the insert; the winner's row is
		// the account we want.
		return r.reread(ctx, id)
	}
	return nil, err
}

// reread handles the losing side of a provisioning race.
func (r *Resolver) reread(ctx context.Context, id *providers.Identity) (*repository.User, error) {
	user, err := r.users.GetByProviderSubject(ctx, id.Provider, id.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: email %s is linked to another provider", ErrAccountConflict, maskEmail(id.Email))
		}
		return nil, err
	}
	return user, nil
}

// refreshProfile keeps name and avatar in sync with the provider.
func (r *Resolver) refreshProfile(ctx context.Context, user *repository.User, id *providers.Identity) (*repository.User, error) {
	var upd repository.ProfileUpdate
	if id.Name != "" && id.Name != user.Name {
		upd.Name = &id.Name
	}
	if id.Picture != "" && (user.Avatar == nil || *user.Avatar != id.Picture) {
		upd.Avatar = &id.Picture
	}
	if upd.Name == nil && upd.Avatar == nil {
		return user, nil
	}
	if err := r.users.UpdateProfile(ctx, user.ID, upd); err != nil {
		return nil, err
	}
	return r.users.GetByID(ctx, user.ID)
}

// maskEmail masks an email for logs (first 2 chars + domain).
func maskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := -1
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}

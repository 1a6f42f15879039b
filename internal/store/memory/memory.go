// Package memory implements the repositories in process memory. Used in dev
// mode and by tests that need deterministic concurrency.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
)

type UserRepository struct {
	mu      sync.Mutex
	byID    map[string]*repository.User
	byEmail map[string]string // lower(email) -> id
	byLink  map[string]string // provider + "\x00" + subject -> id
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*repository.User),
		byEmail: make(map[string]string),
		byLink:  make(map[string]string),
	}
}

func linkKey(provider, subject string) string {
	return provider + "\x00" + subject
}

func clone(u *repository.User) *repository.User {
	cp := *u
	return &cp
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) GetByProviderSubject(_ context.Context, provider, subject string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byLink[linkKey(provider, subject)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepository) Create(_ context.Context, input repository.CreateUserInput) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Empty emails are not unique: providers may withhold the address, and
	// two such identities must still get separate accounts.
	emailKey := strings.ToLower(input.Email)
	if emailKey != "" {
		if _, taken := r.byEmail[emailKey]; taken {
			return nil, repository.ErrConflict
		}
	}
	if input.OAuthProvider != nil && input.OAuthSubjectID != nil {
		if _, taken := r.byLink[linkKey(*input.OAuthProvider, *input.OAuthSubjectID)]; taken {
			return nil, repository.ErrConflict
		}
	}

	now := time.Now().UTC()
	u := &repository.User{
		ID:               uuid.NewString(),
		Email:            input.Email,
		Name:             input.Name,
		Avatar:           input.Avatar,
		PasswordHash:     input.PasswordHash,
		IsActive:         input.IsActive,
		IsVerified:       input.IsVerified,
		OAuthProvider:    input.OAuthProvider,
		OAuthSubjectID:   input.OAuthSubjectID,
		Preferences:      repository.DefaultPreferences(),
		SubscriptionType: "free",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	r.byID[u.ID] = u
	if emailKey != "" {
		r.byEmail[emailKey] = u.ID
	}
	if u.OAuthProvider != nil && u.OAuthSubjectID != nil {
		r.byLink[linkKey(*u.OAuthProvider, *u.OAuthSubjectID)] = u.ID
	}
	return clone(u), nil
}

func (r *UserRepository) LinkProvider(_ context.Context, userID, provider, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, taken := r.byLink[linkKey(provider, subject)]; taken {
		return repository.ErrConflict
	}
	u.OAuthProvider = &provider
	u.OAuthSubjectID = &subject
	u.UpdatedAt = time.Now().UTC()
	r.byLink[linkKey(provider, subject)] = userID
	return nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, userID string, upd repository.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Avatar != nil {
		u.Avatar = upd.Avatar
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepository) TouchLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

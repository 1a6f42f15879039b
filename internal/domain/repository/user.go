package repository

import (
	"context"
	"time"
)

// User is the account record of the study platform.
type User struct {
	ID           string
	Email        string
	Name         string
	Avatar       *string
	PasswordHash *string // nil for OAuth-only accounts

	IsActive   bool
	IsVerified bool

	// OAuth link. Both nil for password-only accounts.
	OAuthProvider  *string
	OAuthSubjectID *string

	Preferences      Preferences
	SubscriptionType string

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Preferences is the user-tunable study configuration, stored as jsonb.
type Preferences struct {
	Language      string `json:"language"`
	Difficulty    string `json:"difficulty"`
	StudyMode     string `json:"study_mode"`
	Notifications bool   `json:"notifications"`
}

// DefaultPreferences returns the defaults applied at provisioning time.
func DefaultPreferences() Preferences {
	return Preferences{
		Language:      "it",
		Difficulty:    "medium",
		StudyMode:     "mixed",
		Notifications: true,
	}
}

// CreateUserInput carries the fields needed to provision a user.
type CreateUserInput struct {
	Email          string
	Name           string
	Avatar         *string
	PasswordHash   *string
	IsActive       bool
	IsVerified     bool
	OAuthProvider  *string
	OAuthSubjectID *string
}

// ProfileUpdate carries the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// UserRepository defines persistence operations over users.
type UserRepository interface {
	// GetByID returns ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail looks a user up by email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByProviderSubject looks a user up by its federated identity.
	// Returns ErrNotFound if no account carries that link.
	GetByProviderSubject(ctx context.Context, provider, subject string) (*User, error)

	// Create inserts a new user. Returns ErrConflict when the email or the
	// (provider, subject) pair is already taken.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// LinkProvider attaches a federated identity to an existing account.
	// Returns ErrConflict when the pair is already linked elsewhere.
	LinkProvider(ctx context.Context, userID, provider, subject string) error

	// UpdateProfile applies the non-nil fields of upd.
	UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error

	// TouchLastLogin stamps last_login_at with the current time.
	TouchLastLogin(ctx context.Context, userID string) error
}

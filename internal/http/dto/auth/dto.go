// Package auth contains the request/response DTOs of the auth endpoints.
package auth

import (
	"time"

	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UserResponse struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Name             string                 `json:"name"`
	Avatar           *string                `json:"avatar,omitempty"`
	IsActive         bool                   `json:"is_active"`
	IsVerified       bool                   `json:"is_verified"`
	OAuthProvider    *string                `json:"oauth_provider,omitempty"`
	Preferences      repository.Preferences `json:"preferences"`
	SubscriptionType string                 `json:"subscription_type"`
	LastLoginAt      *time.Time             `json:"last_login_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	LoginURL    string `json:"login_url"`
	Icon        string `json:"icon,omitempty"`
}

type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// FromUser maps the domain record onto the wire shape.
func FromUser(u *repository.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Avatar:           u.Avatar,
		IsActive:         u.IsActive,
		IsVerified:       u.IsVerified,
		OAuthProvider:    u.OAuthProvider,
		Preferences:      u.Preferences,
		SubscriptionType: u.SubscriptionType,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// NewTokenResponse builds the standard token envelope.
func NewTokenResponse(pair jwt.Pair, u *repository.User) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    pair.ExpiresIn,
		User:         FromUser(u),
	}
}

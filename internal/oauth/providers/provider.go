// Package providers defines the OAuth provider abstraction and the registry
// that holds the configured providers.
package providers

import "context"

// TokenSet is the raw result of an authorization-code exchange.
type TokenSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
}

// Identity is the normalized identity a provider resolves for a user.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Provider is one configured upstream OAuth provider.
//
// Userinfo-style providers (Google, Microsoft) resolve the identity with an
// authenticated profile call; assertion-style providers (Apple) verify the
// ID token returned by the exchange instead.
type Provider interface {
	// Name is the stable lowercase identifier used in routes and storage.
	Name() string

	// DisplayName is the human-readable label for provider listings.
	DisplayName() string

	// IconURL points at the provider logo for login buttons.
	IconURL() string

	// AuthorizeURL builds the browser redirect target carrying the state.
	AuthorizeURL(state string) string

	// Exchange trades an authorization code for provider tokens.
	Exchange(ctx context.Context, code string) (*TokenSet, error)

	// ResolveIdentity extracts the verified identity from the token set.
	ResolveIdentity(ctx context.Context, ts *TokenSet) (*Identity, error)
}

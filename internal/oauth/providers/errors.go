package providers

import "errors"

var (
	// ErrUnknownProvider indicates the requested provider is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrTokenExchangeFailed indicates the code-for-token exchange was
	// rejected or unreachable after the bounded retry.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrIdentityFetchFailed indicates the profile endpoint rejected the
	// provider access token or was unreachable.
	ErrIdentityFetchFailed = errors.New("identity fetch failed")

	// ErrInvalidAssertion indicates the provider ID token failed
	// verification (signature, issuer, audience or expiry).
	ErrInvalidAssertion = errors.New("invalid assertion")
)

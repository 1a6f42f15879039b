package oauth

import "errors"

var (
	// ErrInvalidState covers unknown, expired and replayed states alike so
	// the response never reveals which case was hit.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrProviderDenied indicates the provider reported an error on the
	// callback (user cancelled, consent denied).
	ErrProviderDenied = errors.New("provider denied the authorization")

	// ErrAccountConflict indicates the identity's email belongs to an
	// account already linked to a different federated identity.
	ErrAccountConflict = errors.New("account conflict")

	// ErrMissingCode indicates the callback carried no authorization code.
	// A caller mistake, not a provider failure.
	ErrMissingCode = errors.New("missing authorization code")
)

// Package errors defines the wire-level error envelope. Services return
// sentinel errors; controllers map them onto the catalog below and hand them
// to WriteError.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError is the standard application error shape.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // original cause, for logs only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail returns a copy carrying extra detail, so the catalog entries
// are never mutated.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause returns a copy carrying the original error.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// FromError converts any error into an AppError, defaulting to a generic
// internal error that keeps the cause for logging.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError writes the JSON error envelope for err.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// Catalog. The codes are stable API; clients switch on them.

var (
	ErrBadRequest = &AppError{
		Code:       "bad_request",
		Message:    "The request is malformed or missing required fields.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "invalid_json",
		Message:    "The request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnknownProvider = &AppError{
		Code:       "unknown_provider",
		Message:    "The requested OAuth provider is not configured.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidState = &AppError{
		Code:       "invalid_state",
		Message:    "The OAuth state is missing, expired or already used.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrProviderDenied = &AppError{
		Code:       "provider_denied",
		Message:    "The provider denied the authorization request.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTokenExchangeFailed = &AppError{
		Code:       "token_exchange_failed",
		Message:    "The authorization code could not be exchanged with the provider.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrIdentityFetchFailed = &AppError{
		Code:       "identity_fetch_failed",
		Message:    "The provider did not return the user identity.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrInvalidAssertion = &AppError{
		Code:       "invalid_assertion",
		Message:    "The provider identity assertion failed verification.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAccountConflict = &AppError{
		Code:       "account_conflict",
		Message:    "The email is already linked to a different identity.",
		HTTPStatus: http.StatusConflict,
	}

	ErrInvalidToken = &AppError{
		Code:       "invalid_token",
		Message:    "The token is invalid or has expired.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "invalid_credentials",
		Message:    "Incorrect email or password.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrEmailTaken = &AppError{
		Code:       "email_taken",
		Message:    "The email is already registered.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTooManyRequests = &AppError{
		Code:       "too_many_requests",
		Message:    "Too many requests, slow down.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrUnauthorized = &AppError{
		Code:       "unauthorized",
		Message:    "Authentication required.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       "not_found",
		Message:    "The requested resource was not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInternal = &AppError{
		Code:       "internal_error",
		Message:    "An internal error occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

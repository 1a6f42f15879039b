// Package controllers maps HTTP requests onto the services and their
// sentinel errors onto the wire error catalog.
package controllers

import (
	"errors"
	"net/http"
	"strings"

	dto "github.com/samuvale95/swift-study-box-be/internal/http/dto/auth"
	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
	"github.com/samuvale95/swift-study-box-be/internal/http/helpers"
	"github.com/samuvale95/swift-study-box-be/internal/http/middlewares"
	authsvc "github.com/samuvale95/swift-study-box-be/internal/http/services/auth"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

type AuthController struct {
	svc *authsvc.Service
}

func NewAuthController(svc *authsvc.Service) *AuthController {
	return &AuthController{svc: svc}
}

func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("email, name and a password of at least 8 characters are required"))
		return
	}

	res, err := c.svc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}

	setSessionCookie(w, res.Pair)
	helpers.WriteJSON(w, http.StatusCreated, dto.NewTokenResponse(res.Pair, res.User))
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("email and password are required"))
		return
	}

	res, err := c.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}

	setSessionCookie(w, res.Pair)
	helpers.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(res.Pair, res.User))
}

func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("refresh_token is required"))
		return
	}

	res, err := c.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}

	setSessionCookie(w, res.Pair)
	helpers.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(res.Pair, res.User))
}

// Logout clears the session cookie. Tokens stay valid until expiry; this is
// a client-side logout only.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middlewares.UserIDFrom(r.Context())
	if !ok {
		apperrors.WriteError(w, apperrors.ErrUnauthorized)
		return
	}

	user, err := c.svc.CurrentUser(r.Context(), userID)
	if err != nil {
		c.writeAuthError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromUser(user))
}

func (c *AuthController) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authsvc.ErrEmailTaken):
		apperrors.WriteError(w, apperrors.ErrEmailTaken)
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		apperrors.WriteError(w, apperrors.ErrInvalidCredentials)
	case errors.Is(err, jwt.ErrInvalidToken):
		apperrors.WriteError(w, apperrors.ErrInvalidToken)
	default:
		logger.From(r.Context()).Error("auth request failed",
			logger.Layer("controller"), logger.Component("auth"), logger.Err(err))
		apperrors.WriteError(w, apperrors.ErrInternal)
	}
}

func setSessionCookie(w http.ResponseWriter, pair jwt.Pair) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(pair.ExpiresIn),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	dto "github.com/samuvale95/swift-study-box-be/internal/http/dto/auth"
	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
	"github.com/samuvale95/swift-study-box-be/internal/http/helpers"
	"github.com/samuvale95/swift-study-box-be/internal/http/metrics"
	oauthsvc "github.com/samuvale95/swift-study-box-be/internal/http/services/oauth"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

type OAuthController struct {
	svc *oauthsvc.Service
}

func NewOAuthController(svc *oauthsvc.Service) *OAuthController {
	return &OAuthController{svc: svc}
}

// Providers lists the configured providers and their login entry points.
func (c *OAuthController) Providers(w http.ResponseWriter, r *http.Request) {
	list := c.svc.Providers()
	out := dto.ProvidersResponse{Providers: make([]dto.ProviderInfo, 0, len(list))}
	for _, p := range list {
		out.Providers = append(out.Providers, dto.ProviderInfo{
			Name:        p.Name(),
			DisplayName: p.DisplayName(),
			LoginURL:    "/api/v1/auth/oauth/login/" + p.Name(),
			Icon:        p.IconURL(),
		})
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Login issues a state and redirects the browser to the provider.
func (c *OAuthController) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	callerState := r.URL.Query().Get("state")

	res, err := c.svc.Start(r.Context(), provider, callerState)
	if err != nil {
		c.writeOAuthError(w, r, provider, err)
		return
	}

	http.Redirect(w, r, res.AuthorizeURL, http.StatusFound)
}

// Callback completes the flow. Accepts GET with query parameters and POST
// with form parameters, since Apple posts the response back. The provider
// comes from the path or, on the bare callback route, from the parameters.
func (c *OAuthController) Callback(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			apperrors.WriteError(w, apperrors.ErrBadRequest.WithDetail("malformed form body"))
			return
		}
		params = r.Form
	}

	provider := chi.URLParam(r, "provider")
	if provider == "" {
		provider = params.Get("provider")
	}

	res, err := c.svc.Callback(r.Context(), oauthsvc.CallbackRequest{
		Provider: provider,
		Code:     params.Get("code"),
		State:    params.Get("state"),
		Error:    params.Get("error"),
	})
	if err != nil {
		c.writeOAuthError(w, r, provider, err)
		return
	}

	metrics.RecordOAuthLogin(provider, "success")
	setSessionCookie(w, res.Pair)
	helpers.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(res.Pair, res.User))
}

func (c *OAuthController) writeOAuthError(w http.ResponseWriter, r *http.Request, provider string, err error) {
	appErr := mapOAuthError(err)
	if appErr == apperrors.ErrInternal {
		logger.From(r.Context()).Error("oauth request failed",
			logger.Layer("controller"), logger.Component("oauth"),
			logger.Provider(provider), logger.Err(err))
	}
	metrics.RecordOAuthLogin(provider, appErr.Code)
	apperrors.WriteError(w, appErr)
}

func mapOAuthError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, providers.ErrUnknownProvider):
		return apperrors.ErrUnknownProvider
	case errors.Is(err, oauthsvc.ErrProviderDenied):
		return apperrors.ErrProviderDenied
	case errors.Is(err, oauthsvc.ErrInvalidState):
		return apperrors.ErrInvalidState
	case errors.Is(err, oauthsvc.ErrMissingCode):
		return apperrors.ErrBadRequest.WithDetail("missing authorization code")
	case errors.Is(err, providers.ErrTokenExchangeFailed):
		return apperrors.ErrTokenExchangeFailed
	case errors.Is(err, providers.ErrInvalidAssertion):
		return apperrors.ErrInvalidAssertion
	case errors.Is(err, providers.ErrIdentityFetchFailed):
		return apperrors.ErrIdentityFetchFailed
	case errors.Is(err, oauthsvc.ErrAccountConflict):
		return apperrors.ErrAccountConflict
	default:
		return apperrors.ErrInternal
	}
}

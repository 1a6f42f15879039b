// Package http wires the controllers, middlewares and routes into the
// service handler.
package http

import (
	"context"
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/samuvale95/swift-study-box-be/internal/http/controllers"
	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
	"github.com/samuvale95/swift-study-box-be/internal/http/metrics"
	"github.com/samuvale95/swift-study-box-be/internal/http/middlewares"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/rate"
)

// RouterDeps contains everything the handler tree needs.
type RouterDeps struct {
	Auth  *controllers.AuthController
	OAuth *controllers.OAuthController

	Issuer *jwt.Issuer

	// MetricsHandler serves /metrics. Nil disables the endpoint.
	MetricsHandler stdhttp.Handler

	// Ready reports whether the backing stores are reachable.
	Ready func(ctx context.Context) error

	// RateLimiter guards the credential endpoints. Nil disables limiting.
	RateLimiter rate.Limiter

	CORSOrigins []string
}

// NewRouter builds the full handler tree.
func NewRouter(d RouterDeps) stdhttp.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		if d.Ready != nil {
			if err := d.Ready(req.Context()); err != nil {
				apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err))
				return
			}
		}
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if d.MetricsHandler != nil {
		r.Method(stdhttp.MethodGet, "/metrics", d.MetricsHandler)
	}

	noStore := middlewares.WithNoStore()
	requireAuth := middlewares.WithAuth(d.Issuer)
	limited := middlewares.WithRateLimit(d.RateLimiter)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(noStore)

		r.With(limited).Post("/register", d.Auth.Register)
		r.With(limited).Post("/login", d.Auth.Login)
		r.With(limited).Post("/refresh", d.Auth.Refresh)
		r.Post("/logout", d.Auth.Logout)

		r.With(requireAuth).Get("/me", d.Auth.Me)

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/providers", d.OAuth.Providers)
			r.With(limited).Get("/login/{provider}", d.OAuth.Login)
			r.Get("/callback/{provider}", d.OAuth.Callback)
			r.Post("/callback/{provider}", d.OAuth.Callback)
			r.Get("/callback", d.OAuth.Callback)
			r.Post("/callback", d.OAuth.Callback)
		})
	})

	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		metrics.WithMetrics,
		middlewares.WithRecover(),
		middlewares.WithCORS(d.CORSOrigins),
	)
}

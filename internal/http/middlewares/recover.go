package middlewares

import (
	"net/http"

	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
)

// WithRecover turns panics into a 500 instead of crashing the server.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					apperrors.WriteError(w, apperrors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

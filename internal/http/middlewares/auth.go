package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/samuvale95/swift-study-box-be/internal/jwt"

	apperrors "github.com/samuvale95/swift-study-box-be/internal/http/errors"
)

type userIDKey struct{}

// WithAuth requires a valid access token, from the Authorization header or
// from the access_token cookie, and stores the subject in the context.
func WithAuth(issuer *jwt.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}

			claims, err := issuer.Verify(token, jwt.KindAccess)
			if err != nil {
				apperrors.WriteError(w, apperrors.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom returns the authenticated subject stored by WithAuth.
func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey{}).(string)
	return v, ok && v != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") || strings.HasPrefix(h, "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if c, err := r.Cookie("access_token"); err == nil {
		return c.Value
	}
	return ""
}

// Package jwt issues and verifies the first-party session tokens.
//
// Tokens are HS256-signed with the service secret. Every token carries a
// "type" claim ("access" or "refresh") so one kind can never be accepted
// where the other is expected.
package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two token types.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed token, wrong kind. Callers get no more detail than that.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the session token claims.
type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwtv5.RegisteredClaims
}

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time // overridable in tests
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssuePair mints a fresh access/refresh pair for the subject.
func (i *Issuer) IssuePair(subject, email string) (Pair, error) {
	access, err := i.sign(subject, email, KindAccess, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(subject, email, KindRefresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

func (i *Issuer) sign(subject, email string, kind Kind, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		Email:     email,
		TokenType: string(kind),
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tk.SignedString(i.secret)
}

// Verify parses the token, checks the signature and expiry, and requires the
// given kind. Any failure maps to ErrInvalidToken.
func (i *Issuer) Verify(token string, kind Kind) (*Claims, error) {
	var claims Claims
	tk, err := jwtv5.ParseWithClaims(token, &claims,
		func(t *jwtv5.Token) (any, error) { return i.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithTimeFunc(i.now),
	)
	if err != nil || !tk.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != string(kind) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Refresh verifies a refresh token and mints a new pair for its subject.
func (i *Issuer) Refresh(refreshToken string) (Pair, error) {
	claims, err := i.Verify(refreshToken, KindRefresh)
	if err != nil {
		return Pair{}, err
	}
	return i.IssuePair(claims.Subject, claims.Email)
}

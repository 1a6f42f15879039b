// Package apple implements Sign in with Apple. Apple returns the identity
// inside an ID token; there is no userinfo endpoint, so the token is
// verified against Apple's published keys.
package apple

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
)

const (
	defaultAuthEndpoint  = "https://appleid.apple.com/auth/authorize"
	defaultTokenEndpoint = "https://appleid.apple.com/auth/token"
	defaultJWKSEndpoint  = "https://appleid.apple.com/auth/keys"

	expectedIssuer = "https://appleid.apple.com"

	iconURL = "https://appleid.cdn-apple.com/appleauth/static/bin/cb2613436797/images/apple_logo_black.png"
)

type Config struct {
	ClientID   string // the Services ID
	TeamID     string
	KeyID      string
	PrivateKey string // PEM, PKCS#8
	RedirectURL string
	Scopes      []string
}

type Provider struct {
	cfg        Config
	signingKey *ecdsa.PrivateKey

	authEndpoint  string
	tokenEndpoint string

	jwks *jwksCache
	http *http.Client

	now func() time.Time
}

func New(cfg Config) (*Provider, error) {
	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"name", "email"}
	}
	hc := providers.NewHTTPClient()
	return &Provider{
		cfg:           cfg,
		signingKey:    key,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: defaultTokenEndpoint,
		jwks:          newJWKSCache(defaultJWKSEndpoint, hc),
		http:          hc,
		now:           time.Now,
	}, nil
}

func (p *Provider) Name() string        { return "apple" }
func (p *Provider) DisplayName() string { return "Apple" }
func (p *Provider) IconURL() string     { return iconURL }

func (p *Provider) AuthorizeURL(state string) string {
	u, _ := url.Parse(p.authEndpoint)
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURL)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	// Apple requires form_post when requesting name or email scopes
	q.Set("response_mode", "form_post")
	u.RawQuery = q.Encode()
	return u.String()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`

	Error string `json:"error"`
}

func (p *Provider) Exchange(ctx context.Context, code string) (*providers.TokenSet, error) {
	secret, err := p.clientSecret(p.now())
	if err != nil {
		return nil, fmt.Errorf("%w: apple: sign client secret: %v", providers.ErrTokenExchangeFailed, err)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", secret)
	form.Set("redirect_uri", p.cfg.RedirectURL)

	resp, err := providers.DoWithRetry(ctx, p.http, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: apple: %v", providers.ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: apple: decode response: %v", providers.ErrTokenExchangeFailed, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: apple http %d: %s", providers.ErrTokenExchangeFailed, resp.StatusCode, tr.Error)
	}
	if tr.IDToken == "" {
		return nil, fmt.Errorf("%w: apple: no id_token in response", providers.ErrTokenExchangeFailed)
	}

	return &providers.TokenSet{
		AccessToken:  tr.AccessToken,
		IDToken:      tr.IDToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// errUnknownKey marks a kid the cached key set does not carry.
var errUnknownKey = errors.New("unknown signing key")

// ResolveIdentity verifies the ID token against Apple's key set. A signature
// or key lookup failure triggers exactly one forced key refresh before giving
// up, to cover Apple rotating keys inside our cache TTL. Claim failures such
// as a wrong issuer or audience never retry: fresher keys cannot change them.
func (p *Provider) ResolveIdentity(ctx context.Context, ts *providers.TokenSet) (*providers.Identity, error) {
	identity, err := p.verifyIDToken(ctx, ts.IDToken)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, errUnknownKey) && !errors.Is(err, jwtv5.ErrTokenSignatureInvalid) {
		return nil, err
	}
	if refreshErr := p.jwks.Refresh(ctx); refreshErr != nil {
		return nil, err
	}
	return p.verifyIDToken(ctx, ts.IDToken)
}

func (p *Provider) verifyIDToken(ctx context.Context, idToken string) (*providers.Identity, error) {
	kid, err := tokenKID(idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: apple: %v", providers.ErrInvalidAssertion, err)
	}
	key, err := p.jwks.Key(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: apple: %w", providers.ErrInvalidAssertion, err)
	}

	tok, err := jwtv5.Parse(idToken,
		func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: apple: id_token rejected: %w", providers.ErrInvalidAssertion, err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("%w: apple: id_token rejected", providers.ErrInvalidAssertion)
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: apple: unexpected claims type", providers.ErrInvalidAssertion)
	}
	if iss, _ := claims["iss"].(string); iss != expectedIssuer {
		return nil, fmt.Errorf("%w: apple: bad iss %q", providers.ErrInvalidAssertion, iss)
	}
	if !audMatches(claims["aud"], p.cfg.ClientID) {
		return nil, fmt.Errorf("%w: apple: bad aud", providers.ErrInvalidAssertion)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: apple: missing sub", providers.ErrInvalidAssertion)
	}

	email, _ := claims["email"].(string)
	return &providers.Identity{
		Provider:      p.Name(),
		Subject:       sub,
		Email:         email,
		EmailVerified: email != "" && emailVerifiedClaim(claims),
	}, nil
}

func tokenKID(idToken string) (string, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("bad jwt format")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", err
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(hb, &header); err != nil {
		return "", err
	}
	if header.Alg != "RS256" {
		return "", fmt.Errorf("unexpected alg %q", header.Alg)
	}
	return header.Kid, nil
}

func audMatches(aud any, clientID string) bool {
	switch a := aud.(type) {
	case string:
		return a == clientID
	case []any:
		for _, v := range a {
			if s, _ := v.(string); s == clientID {
				return true
			}
		}
	}
	return false
}

// Apple sends email_verified as bool or as the string "true".
func emailVerifiedClaim(claims jwtv5.MapClaims) bool {
	switch v := claims["email_verified"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

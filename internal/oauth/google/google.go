// Package google implements Google OAuth2 login. The identity is resolved
// with an authenticated userinfo call rather than by parsing the ID token.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
)

const (
	defaultAuthEndpoint     = "https://accounts.google.com/o/oauth2/auth"
	defaultTokenEndpoint    = "https://oauth2.googleapis.com/token"
	defaultUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

	iconURL = "https://developers.google.com/identity/images/g-logo.png"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type Provider struct {
	cfg Config

	authEndpoint     string
	tokenEndpoint    string
	userinfoEndpoint string

	http *http.Client
}

func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return &Provider{
		cfg:              cfg,
		authEndpoint:     defaultAuthEndpoint,
		tokenEndpoint:    defaultTokenEndpoint,
		userinfoEndpoint: defaultUserinfoEndpoint,
		http:             providers.NewHTTPClient(),
	}
}

func (p *Provider) Name() string        { return "google" }
func (p *Provider) DisplayName() string { return "Google" }
func (p *Provider) IconURL() string     { return iconURL }

func (p *Provider) AuthorizeURL(state string) string {
	u, _ := url.Parse(p.authEndpoint)
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURL)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("access_type", "offline")
	u.RawQuery = q.Encode()
	return u.String()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`

	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
}

func (p *Provider) Exchange(ctx context.Context, code string) (*providers.TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
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
		return nil, fmt.Errorf("%w: google: %v", providers.ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: google: decode response: %v", providers.ErrTokenExchangeFailed, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: google http %d: %s %s", providers.ErrTokenExchangeFailed, resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: google: no access_token in response", providers.ErrTokenExchangeFailed)
	}

	return &providers.TokenSet{
		AccessToken:  tr.AccessToken,
		IDToken:      tr.IDToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

type userInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *Provider) ResolveIdentity(ctx context.Context, ts *providers.TokenSet) (*providers.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ts.AccessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", providers.ErrIdentityFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: google userinfo http %d", providers.ErrIdentityFetchFailed, resp.StatusCode)
	}

	var ui userInfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return nil, fmt.Errorf("%w: google: decode userinfo: %v", providers.ErrIdentityFetchFailed, err)
	}
	if ui.ID == "" {
		return nil, fmt.Errorf("%w: google: userinfo without subject", providers.ErrIdentityFetchFailed)
	}

	return &providers.Identity{
		Provider:      p.Name(),
		Subject:       ui.ID,
		Email:         ui.Email,
		EmailVerified: ui.VerifiedEmail,
		Name:          ui.Name,
		Picture:       ui.Picture,
	}, nil
}

// Package microsoft implements Microsoft login via the common v2.0 endpoints
// and the Graph profile API.
package microsoft

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
	defaultAuthEndpoint  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	defaultTokenEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	defaultGraphEndpoint = "https://graph.microsoft.com/v1.0/me"

	iconURL = "https://learn.microsoft.com/favicon.ico"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type Provider struct {
	cfg Config

	authEndpoint  string
	tokenEndpoint string
	graphEndpoint string

	http *http.Client
}

func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile", "User.Read"}
	}
	return &Provider{
		cfg:           cfg,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: defaultTokenEndpoint,
		graphEndpoint: defaultGraphEndpoint,
		http:          providers.NewHTTPClient(),
	}
}

func (p *Provider) Name() string        { return "microsoft" }
func (p *Provider) DisplayName() string { return "Microsoft" }
func (p *Provider) IconURL() string     { return iconURL }

func (p *Provider) AuthorizeURL(state string) string {
	u, _ := url.Parse(p.authEndpoint)
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURL)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
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
		return nil, fmt.Errorf("%w: microsoft: %v", providers.ErrTokenExchangeFailed, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: microsoft: decode response: %v", providers.ErrTokenExchangeFailed, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: microsoft http %d: %s %s", providers.ErrTokenExchangeFailed, resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: microsoft: no access_token in response", providers.ErrTokenExchangeFailed)
	}

	return &providers.TokenSet{
		AccessToken:  tr.AccessToken,
		IDToken:      tr.IDToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

type graphProfile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (p *Provider) ResolveIdentity(ctx context.Context, ts *providers.TokenSet) (*providers.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.graphEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ts.AccessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: microsoft: %v", providers.ErrIdentityFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: microsoft graph http %d", providers.ErrIdentityFetchFailed, resp.StatusCode)
	}

	var gp graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&gp); err != nil {
		return nil, fmt.Errorf("%w: microsoft: decode profile: %v", providers.ErrIdentityFetchFailed, err)
	}
	if gp.ID == "" {
		return nil, fmt.Errorf("%w: microsoft: profile without subject", providers.ErrIdentityFetchFailed)
	}

	// Personal accounts leave mail empty; the UPN is the address then.
	email := gp.Mail
	if email == "" {
		email = gp.UserPrincipalName
	}

	return &providers.Identity{
		Provider:      p.Name(),
		Subject:       gp.ID,
		Email:         email,
		EmailVerified: email != "",
		Name:          gp.DisplayName,
	}, nil
}

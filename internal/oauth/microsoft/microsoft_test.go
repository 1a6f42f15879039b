package microsoft

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
)

func newTestProvider() *Provider {
	return New(Config{
		ClientID:     "ms-client",
		ClientSecret: "ms-secret",
		RedirectURL:  "https://app.example.com/api/v1/auth/oauth/callback",
	})
}

func TestAuthorizeURL(t *testing.T) {
	p := newTestProvider()

	u, err := url.Parse(p.AuthorizeURL("st4te"))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "ms-client", q.Get("client_id"))
	require.Equal(t, "openid email profile User.Read", q.Get("scope"))
	require.Equal(t, "st4te", q.Get("state"))
}

func TestExchangeAndResolve(t *testing.T) {
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"graph-token","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer token.Close()

	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"abc-123","displayName":"Mario Rossi","mail":"mario@outlook.com"}`))
	}))
	defer graph.Close()

	p := newTestProvider()
	p.tokenEndpoint = token.URL
	p.graphEndpoint = graph.URL

	ts, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "graph-token", ts.AccessToken)

	id, err := p.ResolveIdentity(context.Background(), ts)
	require.NoError(t, err)
	require.Equal(t, "microsoft", id.Provider)
	require.Equal(t, "abc-123", id.Subject)
	require.Equal(t, "mario@outlook.com", id.Email)
	require.True(t, id.EmailVerified)
	require.Equal(t, "Mario Rossi", id.Name)
}

func TestResolveIdentityFallsBackToUPN(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"abc-123","displayName":"Mario","mail":null,"userPrincipalName":"mario@live.it"}`))
	}))
	defer graph.Close()

	p := newTestProvider()
	p.graphEndpoint = graph.URL

	id, err := p.ResolveIdentity(context.Background(), &providers.TokenSet{AccessToken: "t"})
	require.NoError(t, err)
	require.Equal(t, "mario@live.it", id.Email)
}

func TestExchangeErrorResponse(t *testing.T) {
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"AADSTS7000215"}`))
	}))
	defer token.Close()

	p := newTestProvider()
	p.tokenEndpoint = token.URL

	_, err := p.Exchange(context.Background(), "code-1")
	require.ErrorIs(t, err, providers.ErrTokenExchangeFailed)
	require.Contains(t, err.Error(), "invalid_client")
}

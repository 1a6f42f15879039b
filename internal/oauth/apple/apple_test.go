package apple

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
)

func genSigningKeyPEM(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), key
}

// jwksServer serves a mutable key set so tests can simulate key rotation.
// It counts fetches so tests can assert when a refresh happened.
type jwksServer struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetches int
	srv     *httptest.Server
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	js := &jwksServer{keys: map[string]*rsa.PublicKey{}}
	js.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		js.mu.Lock()
		defer js.mu.Unlock()
		js.fetches++
		var out struct {
			Keys []map[string]string `json:"keys"`
		}
		for kid, pub := range js.keys {
			out.Keys = append(out.Keys, map[string]string{
				"kty": "RSA",
				"kid": kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString([]byte{1, 0, 1}),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(js.srv.Close)
	return js
}

func (js *jwksServer) set(kid string, pub *rsa.PublicKey) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.keys = map[string]*rsa.PublicKey{kid: pub}
}

func (js *jwksServer) fetchCount() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.fetches
}

func newTestProvider(t *testing.T, jwksURL string) *Provider {
	t.Helper()
	pemKey, _ := genSigningKeyPEM(t)
	p, err := New(Config{
		ClientID:    "com.example.studybox",
		TeamID:      "TEAM123456",
		KeyID:       "KEY1234567",
		PrivateKey:  pemKey,
		RedirectURL: "https://app.example.com/api/v1/auth/oauth/callback",
	})
	require.NoError(t, err)
	p.jwks = newJWKSCache(jwksURL, p.http)
	return p
}

func mintIDToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwtv5.MapClaims) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = kid
	signed, err := tk.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwtv5.MapClaims {
	now := time.Now()
	return jwtv5.MapClaims{
		"iss":            expectedIssuer,
		"aud":            "com.example.studybox",
		"sub":            "001234.abcdef",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "mario@privaterelay.appleid.com",
		"email_verified": "true",
	}
}

func TestAuthorizeURL(t *testing.T) {
	p := newTestProvider(t, "http://unused.test")

	u, err := url.Parse(p.AuthorizeURL("st4te"))
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "com.example.studybox", q.Get("client_id"))
	require.Equal(t, "name email", q.Get("scope"))
	require.Equal(t, "form_post", q.Get("response_mode"))
	require.Equal(t, "st4te", q.Get("state"))
}

func TestClientSecretClaims(t *testing.T) {
	pemKey, signing := genSigningKeyPEM(t)
	p, err := New(Config{
		ClientID:   "com.example.studybox",
		TeamID:     "TEAM123456",
		KeyID:      "KEY1234567",
		PrivateKey: pemKey,
	})
	require.NoError(t, err)

	secret, err := p.clientSecret(time.Now())
	require.NoError(t, err)

	tok, err := jwtv5.Parse(secret,
		func(*jwtv5.Token) (any, error) { return &signing.PublicKey, nil },
		jwtv5.WithValidMethods([]string{"ES256"}),
	)
	require.NoError(t, err)
	require.True(t, tok.Valid)
	require.Equal(t, "KEY1234567", tok.Header["kid"])

	claims := tok.Claims.(jwtv5.MapClaims)
	require.Equal(t, "TEAM123456", claims["iss"])
	require.Equal(t, "com.example.studybox", claims["sub"])
	require.Equal(t, "https://appleid.apple.com", claims["aud"])
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(Config{PrivateKey: "not a pem"})
	require.Error(t, err)
}

func TestResolveIdentity(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &rsaKey.PublicKey)

	p := newTestProvider(t, js.srv.URL)
	idt := mintIDToken(t, rsaKey, "kid-1", baseClaims())

	id, err := p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.NoError(t, err)
	require.Equal(t, "apple", id.Provider)
	require.Equal(t, "001234.abcdef", id.Subject)
	require.Equal(t, "mario@privaterelay.appleid.com", id.Email)
	require.True(t, id.EmailVerified)
}

func TestResolveIdentityRejectsWrongIssuer(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &rsaKey.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	claims := baseClaims()
	claims["iss"] = "https://evil.example.com"
	idt := mintIDToken(t, rsaKey, "kid-1", claims)

	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
}

func TestResolveIdentityRejectsWrongAudience(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &rsaKey.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	claims := baseClaims()
	claims["aud"] = "com.other.app"
	idt := mintIDToken(t, rsaKey, "kid-1", claims)

	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
}

func TestResolveIdentityRejectsExpired(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &rsaKey.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	claims := baseClaims()
	claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	idt := mintIDToken(t, rsaKey, "kid-1", claims)

	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
}

func TestResolveIdentityRecoversFromKeyRotation(t *testing.T) {
	oldKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &oldKey.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	// Warm the cache with the old key
	idt := mintIDToken(t, oldKey, "kid-1", baseClaims())
	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.NoError(t, err)

	// Apple rotates the key under the same kid. The cached key fails the
	// signature, the forced refresh picks up the new one.
	js.set("kid-1", &newKey.PublicKey)
	idt = mintIDToken(t, newKey, "kid-1", baseClaims())

	id, err := p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.NoError(t, err)
	require.Equal(t, "001234.abcdef", id.Subject)
}

func TestResolveIdentityClaimFailureSkipsKeyRefresh(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &rsaKey.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	// Warm the cache
	idt := mintIDToken(t, rsaKey, "kid-1", baseClaims())
	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.NoError(t, err)
	warm := js.fetchCount()

	// A bad issuer is a claim failure: fresher keys cannot fix it, so no
	// refresh round-trip should happen.
	claims := baseClaims()
	claims["iss"] = "https://evil.example.com"
	idt = mintIDToken(t, rsaKey, "kid-1", claims)
	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
	require.Equal(t, warm, js.fetchCount())

	// Same for an expired token
	claims = baseClaims()
	claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	idt = mintIDToken(t, rsaKey, "kid-1", claims)
	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
	require.Equal(t, warm, js.fetchCount())

	// A signature failure against the cached key does refresh once
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idt = mintIDToken(t, foreign, "kid-1", baseClaims())
	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
	require.Equal(t, warm+1, js.fetchCount())
}

func TestResolveIdentityRejectsForeignKey(t *testing.T) {
	trusted, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	foreign, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	js := newJWKSServer(t)
	js.set("kid-1", &trusted.PublicKey)
	p := newTestProvider(t, js.srv.URL)

	idt := mintIDToken(t, foreign, "kid-1", baseClaims())

	_, err = p.ResolveIdentity(context.Background(), &providers.TokenSet{IDToken: idt})
	require.ErrorIs(t, err, providers.ErrInvalidAssertion)
}

package apple

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const jwksTTL = time.Hour

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// jwksCache holds Apple's signing keys. Fetches are collapsed through
// singleflight and revalidated with the ETag the endpoint returns.
type jwksCache struct {
	endpoint string
	http     *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	etag      string

	sf singleflight.Group
}

func newJWKSCache(endpoint string, hc *http.Client) *jwksCache {
	return &jwksCache{endpoint: endpoint, http: hc}
}

// Key returns the RSA public key for kid, fetching the set when the cache is
// cold or stale. A kid absent from a fresh set is an error.
func (c *jwksCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key := c.keys[kid]
	fresh := c.keys != nil && time.Since(c.fetchedAt) < jwksTTL
	c.mu.RUnlock()

	if key != nil && fresh {
		return key, nil
	}
	if err := c.Refresh(ctx); err != nil {
		if key != nil {
			// Serve the stale key rather than failing the login
			return key, nil
		}
		return nil, err
	}

	c.mu.RLock()
	key = c.keys[kid]
	c.mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("apple: %w %q", errUnknownKey, kid)
	}
	return key, nil
}

// Refresh fetches the key set. Concurrent callers share a single fetch.
func (c *jwksCache) Refresh(ctx context.Context) error {
	_, err, _ := c.sf.Do("jwks", func() (any, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *jwksCache) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return err
	}
	c.mu.RLock()
	etag := c.etag
	c.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apple: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.Lock()
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return nil
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("apple: jwks http %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("apple: decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		pub, err := rsaKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.etag = resp.Header.Get("ETag")
	c.mu.Unlock()
	return nil
}

func rsaKey(k jwk) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = (e << 8) | int(b)
	}
	if e == 0 {
		e = 65537
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

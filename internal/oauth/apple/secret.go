package apple

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Apple has no static client secret. Each token exchange authenticates with
// a short-lived ES256 JWT signed by the developer key.
const clientSecretTTL = 10 * time.Minute

func parsePrivateKey(pemData string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("apple: private key is not PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("apple: parse private key: %w", err)
	}
	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("apple: private key is not ECDSA")
	}
	return ec, nil
}

func (p *Provider) clientSecret(now time.Time) (string, error) {
	claims := jwtv5.MapClaims{
		"iss": p.cfg.TeamID,
		"iat": now.Unix(),
		"exp": now.Add(clientSecretTTL).Unix(),
		"aud": "https://appleid.apple.com",
		"sub": p.cfg.ClientID,
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, claims)
	tk.Header["kid"] = p.cfg.KeyID
	return tk.SignedString(p.signingKey)
}

package providers

import (
	"context"
	"net/http"
	"time"
)

// NewHTTPClient returns the outbound client shared by provider packages.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// DoWithRetry performs the request built by mk, retrying exactly once when
// the transport fails before producing a response. An HTTP error status is
// not retried; the provider already answered.
func DoWithRetry(ctx context.Context, hc *http.Client, mk func() (*http.Request, error)) (*http.Response, error) {
	req, err := mk()
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	req, mkErr := mk()
	if mkErr != nil {
		return nil, err
	}
	return hc.Do(req)
}

// Package ip resolves the caller's public IP address through an
// ipify-compatible lookup service.
package ip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the ipify JSON endpoint.
const DefaultEndpoint = "https://api.ipify.org?format=json"

// Fallback is the address recorded when the lookup fails; callers treat it
// as "unknown" rather than an error.
const Fallback = "0.0.0.0"

// Resolver looks up the public IP over HTTP.
type Resolver struct {
	endpoint string
	client   *http.Client
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEndpoint overrides the lookup URL.
func WithEndpoint(endpoint string) Option {
	return func(r *Resolver) {
		if endpoint != "" {
			r.endpoint = endpoint
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// NewResolver builds a resolver against the default ipify endpoint.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveIP returns the public IP reported by the lookup service.
func (r *Resolver) ResolveIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("ip: build request: %w", err)
	}

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip: lookup: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip: lookup returned status %d", res.StatusCode)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("ip: decode response: %w", err)
	}
	if strings.TrimSpace(body.IP) == "" {
		return "", fmt.Errorf("ip: empty address in response")
	}
	return strings.TrimSpace(body.IP), nil
}

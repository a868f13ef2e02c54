// Package partner is the HTTP client for the banking partner's legal-entity
// API. It delivers the beneficial-ownership payload assembled by the
// workflow and classifies failures so callers know whether a retry is worth
// attempting.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lemma-health/go-onboarding/pkg/ownership"
)

// TransportError reports a failed partner call. Retryable is set for
// network-level failures and 5xx responses; 4xx responses indicate a payload
// problem a retry will not fix.
type TransportError struct {
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partner: %v", e.Err)
	}
	return fmt.Sprintf("partner: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EntityService is the partner's legal-entity surface. Client implements it;
// consumers that only deliver whole submissions can depend on the narrower
// workflow submitter port instead.
type EntityService interface {
	CreateLegalEntity(ctx context.Context, payload ownership.Payload) (string, error)
	RecordTermsAcceptance(ctx context.Context, entityID string, agreement ownership.TermsAgreement) error
}

// Client talks to the partner API. It implements EntityService and the
// workflow submitter port.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient builds a client against the given API base URL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateLegalEntity posts the legal-entity payload and returns the partner's
// identifier for the created entity.
func (c *Client) CreateLegalEntity(ctx context.Context, payload ownership.Payload) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/legal-entities", payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// RecordTermsAcceptance reports a standalone terms acceptance for an existing
// legal entity, for re-acceptance after the terms document changes.
func (c *Client) RecordTermsAcceptance(ctx context.Context, entityID string, agreement ownership.TermsAgreement) error {
	path := "/legal-entities/" + url.PathEscape(entityID) + "/terms-agreements"
	return c.post(ctx, path, agreement, nil)
}

// SubmitLegalEntity delivers the payload as a fire-and-forget submission,
// satisfying the workflow submitter port.
func (c *Client) SubmitLegalEntity(ctx context.Context, payload ownership.Payload) error {
	_, err := c.CreateLegalEntity(ctx, payload)
	return err
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("partner: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("partner: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Retryable: true, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil && err != io.EOF {
				return fmt.Errorf("partner: decode response: %w", err)
			}
		}
		return nil
	}

	// Partner error bodies are short JSON documents; keep a bounded excerpt
	// for the error message.
	excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return &TransportError{
		StatusCode: res.StatusCode,
		Body:       strings.TrimSpace(string(excerpt)),
		Retryable:  res.StatusCode >= 500,
	}
}

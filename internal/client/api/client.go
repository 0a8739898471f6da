// Package api is the HTTP client of the timevault JSON API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/pow"
)

// Client is the HTTP API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	backoff    time.Duration
}

// Option configures the API client.
type Option func(*Client)

// WithRetries sets how many times transient failures are retried.
func WithRetries(retries int) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBackoff sets the base delay between retries; attempt n waits n times it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL (without /api/v1).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("server URL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: 3,
		backoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type request struct {
	method  string
	path    string
	bearer  string
	headers map[string]string
	body    any
	// noRetry marks calls whose server-side effect cannot be repeated.
	noRetry bool
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, r request, result any) error {
	var data []byte
	if r.body != nil {
		var err error
		if data, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempts := c.retries + 1
	if r.noRetry {
		attempts = 1
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+common.APIPrefix+r.path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.bearer != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+r.bearer)
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}

		resp, lastErr = c.httpClient.Do(req)
		if !retryable(resp, lastErr) {
			break
		}
		if resp != nil && attempt < attempts-1 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return fmt.Errorf("request failed: %w", lastErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// IssueChallenge asks for a PoW challenge bound to payloadHash.
func (c *Client) IssueChallenge(ctx context.Context, payloadHash string, ciphertextSize int) (*pow.Challenge, error) {
	var ch pow.Challenge
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/challenges",
		body:   challengeRequest{PayloadHash: payloadHash, CiphertextSize: ciphertextSize},
	}, &ch)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateSecret stores a secret. A retried create would present a consumed
// challenge or capability token, so it is sent once.
func (c *Client) CreateSecret(ctx context.Context, in CreateSecretRequest) (*CreateSecretResponse, error) {
	var out CreateSecretResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/secrets", body: in, noRetry: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, decryptToken string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/secrets/status", bearer: decryptToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EditStatus(ctx context.Context, editToken string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/secrets/edit/status", bearer: editToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retrieve claims the ciphertext. It is never retried: the first request
// that reaches the server consumes the secret.
func (c *Client) Retrieve(ctx context.Context, decryptToken string) (*RetrieveResponse, error) {
	var out RetrieveResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/secrets/retrieve", bearer: decryptToken, noRetry: true}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Edit(ctx context.Context, editToken string, in EditRequest) (*EditResponse, error) {
	var out EditResponse
	if err := c.do(ctx, request{method: http.MethodPut, path: "/secrets/edit", bearer: editToken, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateCapabilityToken(ctx context.Context, token string) (*CapabilityTokenInfo, error) {
	var out CapabilityTokenInfo
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/capability-tokens/validate",
		headers: map[string]string{common.CapabilityTokenHeaderName: token},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var h healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&h)
	if resp.StatusCode != http.StatusOK || h.Status != "healthy" {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

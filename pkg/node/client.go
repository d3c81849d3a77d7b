// Package node is a small client for the DeSo node HTTP API.
package node

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

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the node the web app itself talks to.
	DefaultBaseURL = "https://bitclout.com"

	apiPrefix      = "/api/v0/"
	defaultTimeout = 30 * time.Second
	maxLookupTries = 3
)

// ErrNotFound is returned when a lookup matched nothing.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the node.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node returned %d", e.StatusCode)
	}
	return fmt.Sprintf("node returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client calls node endpoints. Read-only lookups retry transient failures,
// anything that mutates chain or account state is attempted once.
type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
}

type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLookupRetries sets how many times a read-only lookup is retried.
func WithLookupRetries(n uint64) Option {
	return func(c *Client) { c.retries = n }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		retries: maxLookupTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the node URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid %s response: %w", endpoint, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// lookup runs a read-only request, retrying network errors and 5xx/429.
func (c *Client) lookup(ctx context.Context, endpoint string, body, out any) error {
	op := func() error {
		err := c.post(ctx, endpoint, body, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
}

// HealthCheck calls the node's health endpoint once.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+"health-check", nil)
	if err != nil {
		return err
	}
	return c.do(req, "health-check", nil)
}

// SubmitTransaction broadcasts a signed transaction. It is never retried.
func (c *Client) SubmitTransaction(ctx context.Context, signedTransactionHex string) (*SubmitTransactionResponse, error) {
	var out SubmitTransactionResponse
	body := map[string]string{"TransactionHex": signedTransactionHex}
	if err := c.post(ctx, "submit-transaction", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfileByPublicKey looks up a profile. ErrNotFound when the key has no
// profile.
func (c *Client) GetProfileByPublicKey(ctx context.Context, publicKey string) (*Profile, error) {
	return c.getSingleProfile(ctx, map[string]string{"PublicKeyBase58Check": publicKey})
}

// GetProfileByUsername looks up a profile by username.
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	return c.getSingleProfile(ctx, map[string]string{"Username": username})
}

func (c *Client) getSingleProfile(ctx context.Context, body map[string]string) (*Profile, error) {
	var out struct {
		Profile *Profile `json:"Profile"`
	}
	err := c.lookup(ctx, "get-single-profile", body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if out.Profile == nil {
		return nil, ErrNotFound
	}
	return out.Profile, nil
}

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
	"github.com/O-G-W-A-L/doit-cli/internal/session"
)

// refreshPath is the token-refresh endpoint, resolved against the client's
// base URL.
const refreshPath = "/api/auth/refresh/"

// defaultTimeout bounds every request end to end, including a refresh cycle.
const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport sets a custom base transport for all outgoing requests,
// including the token-refresh call. If not provided, http.DefaultTransport is
// used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// Client is the sole entry point to the platform API. All domain services go
// through Request or the generic helpers and receive either data or a
// *ClassifiedError; no failure escapes unclassified.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a Client whose transport chain attaches credentials from the
// store and recovers from expired access tokens via the broadcaster-guarded
// refresh cycle.
func New(baseURL string, store credstore.Store, broadcaster *session.Broadcaster, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseTransport: http.DefaultTransport,
		timeout:       defaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", baseURL)
	}
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if broadcaster == nil {
		return nil, fmt.Errorf("missing session broadcaster")
	}

	source, err := session.NewTokenSource(store)
	if err != nil {
		return nil, err
	}

	auth := &authTransport{base: cfg.baseTransport, source: source}
	refresh := newRefreshTransport(auth, store, broadcaster, base.JoinPath(refreshPath).String(), cfg.baseTransport)

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   cfg.timeout,
			Transport: refresh,
		},
	}, nil
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithQuery sets the request's query string.
func WithQuery(values url.Values) RequestOption {
	return func(req *http.Request) {
		req.URL.RawQuery = values.Encode()
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Request issues an API call and returns the raw response. Failures of any
// shape come back as *ClassifiedError. Bodies encode as JSON unless the body
// is a *MultipartBody (file upload) or an io.Reader (caller-encoded).
//
// The caller owns the returned response body on success.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Response, error) {
	target, err := url.Parse(path)
	if err != nil {
		return nil, Classify(fmt.Errorf("invalid request path %q: %w", path, err))
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *MultipartBody:
		reader = b.Reader
		contentType = b.ContentType
	case io.Reader:
		reader = b
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, Classify(fmt.Errorf("encoding request body: %w", err))
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(target).String(), reader)
	if err != nil {
		return nil, Classify(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Classify(err)
	}

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		classified := classifyStatus(resp.StatusCode, payload)
		slog.DebugContext(ctx, "request failed",
			"method", method, "path", path, "status", resp.StatusCode, "kind", classified.Kind)
		return nil, classified
	}

	return resp, nil
}

// Get issues a GET request and decodes the JSON response into T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request and decodes the JSON response into T.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodPost, path, body, opts...)
}

// Patch issues a PATCH request and decodes the JSON response into T.
func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (T, error) {
	return do[T](ctx, c, http.MethodPatch, path, body, opts...)
}

// Delete issues a DELETE request, discarding any response payload.
func Delete(ctx context.Context, c *Client, path string, opts ...RequestOption) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, path, nil, opts...)
	return err
}

func do[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (T, error) {
	var value T

	resp, err := c.Request(ctx, method, path, body, opts...)
	if err != nil {
		return value, err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNoContent {
		return value, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body on a success status: leave the zero value.
			return value, nil
		}
		return value, Classify(fmt.Errorf("decoding response: %w", err))
	}
	return value, nil
}

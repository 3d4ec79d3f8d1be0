// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultOutputKey is the output key used when none is configured.
	DefaultOutputKey = "output"

	// maxSpecBytes bounds the job spec response size (4 MB).
	maxSpecBytes = 4 << 20
)

var (
	// ErrNoBaseURL is returned when the client has no metadata URL configured.
	ErrNoBaseURL = errors.New("metadata URL is not configured")

	// ErrSpecNotFound is returned when the metadata API has no job spec.
	ErrSpecNotFound = errors.New("job spec not found in metadata API")

	// ErrSpecTooLarge is returned when the job spec exceeds maxSpecBytes.
	ErrSpecTooLarge = fmt.Errorf("job spec exceeds %d bytes", maxSpecBytes)
)

type (
	// StatusError is returned for unexpected HTTP status codes.
	StatusError struct {
		Method string
		URL    string
		Status int
	}

	// Client is a minimal client for the metadata API.
	Client struct {
		httpClient *http.Client
		baseURL    string
		token      string
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(m *Client) {
		m.httpClient = c
	}
}

// WithToken sets a bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(m *Client) {
		m.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(m *Client) {
		m.userAgent = ua
	}
}

// NewClient creates a metadata client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "boltstep/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchSpec downloads the raw JSON job spec.
func (c *Client) FetchSpec(ctx context.Context) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	specURL := c.baseURL + "/spec"

	resp, err := c.doRequest(ctx, http.MethodGet, specURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("fetching job spec: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSpecNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, URL: redactURL(specURL), Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSpecBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading job spec: %w", err)
	}
	if len(data) > maxSpecBytes {
		return nil, ErrSpecTooLarge
	}
	return data, nil
}

// SetOutput publishes output under key. Output that is valid JSON is embedded
// as-is; anything else is sent as a JSON string.
func (c *Client) SetOutput(ctx context.Context, key string, output []byte) error {
	if c.baseURL == "" {
		return ErrNoBaseURL
	}
	if key == "" {
		key = DefaultOutputKey
	}

	body, err := encodeOutput(output)
	if err != nil {
		return err
	}

	outURL := c.baseURL + "/outputs/" + url.PathEscape(key)
	resp, err := c.doRequest(ctx, http.MethodPut, outURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("publishing output %q: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodPut, URL: redactURL(outURL), Status: resp.StatusCode}
	}
	return nil
}

// encodeOutput builds the {"value": ...} publication body. JSON output is
// embedded byte for byte apart from surrounding whitespace; anything else
// becomes a JSON string without HTML escaping.
func encodeOutput(output []byte) ([]byte, error) {
	value := bytes.TrimSpace(output)
	if len(value) == 0 || !json.Valid(value) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(string(output)); err != nil {
			return nil, fmt.Errorf("encoding output: %w", err)
		}
		value = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	}

	body := make([]byte, 0, len(value)+len(`{"value":}`))
	body = append(body, `{"value":`...)
	body = append(body, value...)
	return append(body, '}'), nil
}

func (c *Client) doRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// redactURL strips credentials, query parameters and fragments from a URL
// before it appears in an error message.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUnexpectedStatus is returned when the classifier answers with a
	// status other than 200.
	ErrUnexpectedStatus = errors.New("unexpected classifier status")

	// ErrMalformedResponse is returned when the body is not a JSON array.
	ErrMalformedResponse = errors.New("malformed classifier response")
)

const (
	// DefaultTimeout bounds a single classification request.
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 4 << 20
)

// Client talks to the classifier HTTP endpoint.
type Client struct {
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBasicAuth sets the HTTP Basic credentials.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient returns a Client for endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type classifyRequest struct {
	Texts []string `json:"texts"`
}

type classifyResult struct {
	Spoiler bool `json:"spoiler"`
}

// Classify returns one verdict per text, positionally aligned. Positions
// the response leaves out count as "not a spoiler".
func (c *Client) Classify(ctx context.Context, texts []string) ([]bool, error) {
	body, err := json.Marshal(classifyRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier response: %w", err)
	}
	var results []classifyResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if results == nil {
		return nil, fmt.Errorf("%w: null result list", ErrMalformedResponse)
	}

	verdicts := make([]bool, len(texts))
	for i := range verdicts {
		if i < len(results) {
			verdicts[i] = results[i].Spoiler
		}
	}
	return verdicts, nil
}

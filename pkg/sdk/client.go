package sdk

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
)

const defaultTimeout = 120 * time.Second

// Client talks to an asksite deployment over HTTP.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
}

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithHTTPClient replaces the default HTTP client. Streaming calls inherit
// its transport but ignore its timeout; cancel via context instead.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.http = hc
	})
}

// WithAdminKey sets the bearer token for the admin endpoints.
func WithAdminKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.adminKey = key
	})
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asksite: %s (%s, HTTP %d)", e.Message, e.Code, e.Status)
}

// ErrStreamClosed is returned when the event stream ends without the
// terminating sentinel.
var ErrStreamClosed = errors.New("asksite: stream closed before completion")

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("asksite: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("asksite: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newAdminRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	if c.adminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminKey)
	}
	return req, nil
}

// doJSON executes req and decodes a JSON response into out (may be nil).
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("asksite: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("asksite: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "unknown", Message: resp.Status}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var envelope struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Message
		}
	}
	return apiErr
}

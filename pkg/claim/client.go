package claim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// DefaultBaseURL is the root of the reward API
	DefaultBaseURL = "https://rugplay.com/api"
	// DefaultTimeout bounds each HTTP request
	DefaultTimeout = 30 * time.Second

	claimEndpoint = "rewards/claim"
	userAgent     = "collector/1.0"
)

// Client is the HTTP implementation of Facade for a single account.
type Client struct {
	baseURL    string
	token      string
	cookie     string
	timeout    time.Duration
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL overrides DefaultBaseURL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithCookie sends the given session cookie with every request
func WithCookie(cookie string) ClientOption {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithTimeout overrides DefaultTimeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a client authenticated with the given API key
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.timeout}

	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", c.baseURL)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	return c, nil
}

// FetchStatus implements Facade
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "fetch status", &statusShape{}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SubmitClaim implements Facade
func (c *Client) SubmitClaim(ctx context.Context) (*Result, error) {
	var result Result
	if err := c.do(ctx, http.MethodPost, "submit claim", &resultShape{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends one request and decodes the body into out once shape confirms
// every required key is present
func (c *Client) do(ctx context.Context, method, op string, shape payloadShape, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+claimEndpoint, nil)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, Op: op, StatusCode: resp.StatusCode, Body: excerpt(body),
			Err: fmt.Errorf("credentials rejected")}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{Kind: KindTransport, Op: op, StatusCode: resp.StatusCode, Body: excerpt(body),
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := sonic.Unmarshal(body, shape); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Body: excerpt(body), Err: err}
	}
	if missing := shape.missing(); len(missing) > 0 {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Body: excerpt(body),
			Err: fmt.Errorf("response is missing %s", strings.Join(missing, ", "))}
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, StatusCode: resp.StatusCode, Body: excerpt(body), Err: err}
	}

	return nil
}

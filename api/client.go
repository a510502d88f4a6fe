package api

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
	"strings"
	"time"

	"github.com/MrEthical07/consolelogin"
)

const (
	pathCountries      = "/security/countries"
	pathIdentifier     = "/security/identifier"
	pathLogin          = "/security/login"
	pathVerifySetupOTP = "/security/verify-setup-otp"
	pathSetupPassword  = "/security/setup-password"

	maxBodyBytes = 1 << 20
)

// ErrTransport wraps network and decoding failures.
var ErrTransport = errors.New("security api transport failure")

// TokenSource yields the session token to send as a bearer credential. An
// error means "no usable token" and the request goes out unauthenticated.
type TokenSource interface {
	Bearer(ctx context.Context) (string, error)
}

// Client calls the security API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTokenSource attaches Authorization headers from ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url must be absolute: %q", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromConfig returns a Client for cfg.BaseURL whose per-request timeout is
// cfg.Timeout. A zero timeout keeps the default. opts apply after cfg.
func FromConfig(cfg consolelogin.APIConfig, opts ...Option) (*Client, error) {
	return New(cfg.BaseURL, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...)
}

var _ consolelogin.SecurityAPI = (*Client)(nil)

// Countries fetches the supported-country catalog. Both a bare array and a
// {"data": [...]} envelope are accepted.
func (c *Client) Countries(ctx context.Context) ([]consolelogin.CountryDetail, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathCountries, nil, &raw); err != nil {
		return nil, err
	}

	var list []consolelogin.CountryDetail
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var env struct {
		Data []consolelogin.CountryDetail `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode countries: %v", ErrTransport, err)
	}
	return env.Data, nil
}

// Identify reports whether an account exists and how it authenticates.
func (c *Client) Identify(ctx context.Context, req consolelogin.IdentifyRequest) (*consolelogin.IdentifyResponse, error) {
	var out consolelogin.IdentifyResponse
	if err := c.do(ctx, http.MethodPost, pathIdentifier, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with a password or a PIN.
func (c *Client) Login(ctx context.Context, req consolelogin.LoginRequest) (*consolelogin.LoginResponse, error) {
	var out consolelogin.LoginResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySetupOTP exchanges a one-time code for a setup token.
func (c *Client) VerifySetupOTP(ctx context.Context, req consolelogin.OTPVerifyRequest) (*consolelogin.OTPVerifyResponse, error) {
	var out consolelogin.OTPVerifyResponse
	if err := c.do(ctx, http.MethodPost, pathVerifySetupOTP, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetupPassword creates the account password.
func (c *Client) SetupPassword(ctx context.Context, req consolelogin.SetupPasswordRequest) (*consolelogin.LoginResponse, error) {
	var out consolelogin.LoginResponse
	if err := c.do(ctx, http.MethodPost, pathSetupPassword, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrTransport, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok, err := c.tokens.Bearer(ctx); err == nil && tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}
	c.logger.Debug("security api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrTransport, path, err)
	}
	return nil
}

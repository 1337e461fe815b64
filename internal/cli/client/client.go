// Package client implements the HTTP client for the mirror authentication API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/config"
	cliTLS "github.com/gitlab-mirror/mirrorauth/internal/cli/tls"
	"github.com/gitlab-mirror/mirrorauth/pkg/protocol"
)

const (
	defaultTimeout  = 30 * time.Second
	contentTypeJSON = "application/json"
	maxRetries      = 3
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxErrorBody    = 200
)

// API paths, relative to the base URL.
const (
	PathChallenge = "/auth/challenge"
	PathLogin     = "/auth/login"
	PathLogout    = "/auth/logout"
	PathVerify    = "/auth/verify"
	PathStatus    = "/status"
)

// Client is an HTTP client for the mirror authentication API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration

	mu             sync.RWMutex
	sessionToken   string
	onUnauthorized func(path string)
}

// NewClient creates a client for the server named in cfg. An https server
// without a configured CA bundle gets certificate pinning, prompting on the
// terminal for unknown certificates.
func NewClient(cfg *config.Config) (*Client, error) {
	var verifier *cliTLS.Verifier
	if cfg.UsesTLS() && cfg.CACert == "" {
		store, err := cliTLS.NewCertificateStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open certificate store: %w", err)
		}
		verifier = cliTLS.NewVerifier(store, cliTLS.TerminalPrompter(os.Stdin, os.Stderr), nil)
	}

	transport, err := NewTransport(cfg.HostPort(), cfg.CACert, verifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return New(cfg.BaseURL(), &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}), nil
}

// New creates a client for baseURL using httpClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		backoff:    initialBackoff,
	}
}

// SetRetryBackoff sets the delay before the first retry of an idempotent request.
func (c *Client) SetRetryBackoff(d time.Duration) {
	c.backoff = d
}

// SetSessionToken sets the bearer token for authenticated requests.
// An empty token removes the Authorization header.
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionToken = token
}

// SessionToken returns the current bearer token.
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

// OnUnauthorized registers fn to be called with the request path whenever
// the server answers HTTP 401.
func (c *Client) OnUnauthorized(fn func(path string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// RequestChallenge asks the server for a login challenge for username.
func (c *Client) RequestChallenge(ctx context.Context, username string) (*protocol.ChallengeResponse, error) {
	var resp protocol.ChallengeResponse
	if err := c.post(ctx, PathChallenge, protocol.ChallengeRequest{Username: username}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login submits a client proof for a previously issued challenge.
func (c *Client) Login(ctx context.Context, req protocol.LoginRequest) (*protocol.LoginResponse, error) {
	var resp protocol.LoginResponse
	if err := c.post(ctx, PathLogin, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify checks the current session token with the server.
func (c *Client) Verify(ctx context.Context) (*protocol.VerifyResponse, error) {
	var resp protocol.VerifyResponse
	if err := c.get(ctx, PathVerify, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current session token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, PathLogout, nil, nil)
}

// Status fetches the protected service status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	if err := c.get(ctx, PathStatus, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, response any) error {
	return c.do(ctx, http.MethodGet, path, nil, response)
}

func (c *Client) post(ctx context.Context, path string, body, response any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, payload, response)
}

// do executes a request. Only GET requests are retried: a login challenge is
// single-use and must not be replayed.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, response any) error {
	retries := 0
	if method == http.MethodGet {
		retries = maxRetries
	}
	backoff := c.backoff

	for attempt := 0; ; attempt++ {
		status, header, body, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			if isRetryable(err) && attempt < retries {
				if werr := wait(ctx, backoff); werr != nil {
					return protocol.NewNetworkError(werr.Error())
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return protocol.NewNetworkError(err.Error())
		}

		if status >= 500 && attempt < retries {
			if werr := wait(ctx, backoff); werr != nil {
				return protocol.NewNetworkError(werr.Error())
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		if status == http.StatusUnauthorized {
			c.notifyUnauthorized(path)
		}

		return decodeResponse(status, header, body, response)
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, http.Header, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if token := c.SessionToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func (c *Client) notifyUnauthorized(path string) {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(path)
	}
}

// envelope is protocol.Response with the payload left undecoded.
type envelope struct {
	Success bool                    `json:"success"`
	Data    json.RawMessage         `json:"data"`
	Error   *protocol.ErrorResponse `json:"error"`
}

func decodeResponse(status int, header http.Header, body []byte, response any) error {
	var env envelope
	parseErr := json.Unmarshal(body, &env)

	if status >= 400 || (parseErr == nil && !env.Success) {
		apiErr := env.Error
		if parseErr != nil || apiErr == nil || apiErr.Code == "" {
			apiErr = fallbackError(status, body)
		}
		apiErr.Status = status
		if apiErr.RetryAfter == nil {
			if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil {
				apiErr.RetryAfter = &secs
			}
		}
		return apiErr
	}

	if parseErr != nil {
		return protocol.NewErrorWithDetails(protocol.ErrCodeUnknown, "Malformed server response", truncate(body))
	}

	if response != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, response); err != nil {
			return protocol.NewErrorWithDetails(protocol.ErrCodeUnknown, "Malformed server response", err.Error())
		}
	}
	return nil
}

// fallbackError describes an error response that carried no usable body.
func fallbackError(status int, body []byte) *protocol.ErrorResponse {
	switch status {
	case http.StatusBadRequest:
		return protocol.NewValidationError("Invalid request")
	case http.StatusUnauthorized:
		return protocol.NewAuthenticationError("Authentication required")
	case http.StatusNotFound:
		return protocol.NewErrorWithDetails(protocol.ErrCodeUnknown, "Endpoint not found, possible version mismatch", truncate(body))
	case http.StatusLocked:
		return protocol.NewError(protocol.ErrCodeAccountLocked, "Account is locked")
	case http.StatusTooManyRequests:
		return protocol.NewError(protocol.ErrCodeTooManyRequests, "Too many requests")
	}
	if status >= 500 {
		return protocol.NewInternalError(fmt.Sprintf("server error (HTTP %d)", status))
	}
	return protocol.NewErrorWithDetails(protocol.ErrCodeUnknown, fmt.Sprintf("Request failed with status %d", status), truncate(body))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable checks if a transport error is transient.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

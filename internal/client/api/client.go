// Package api is the HTTP client of GlycoKeeper. It attaches the stored
// access token to every request and, when the backend answers 401, runs a
// single token refresh on behalf of all concurrently failing requests before
// replaying them.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathRefresh  = "/auth/refresh"
)

// TokenStore is the device storage holding the session credentials.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	// SetTokens stores a new pair; an empty refresh token keeps the current one.
	SetTokens(access, refresh string) error
	// ClearCredentials removes tokens and the stored user.
	ClearCredentials() error
}

// SessionStore adds the serialized user to TokenStore.
type SessionStore interface {
	TokenStore
	SaveUser(models.User) error
	User() (*models.User, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSessionExpiredHook registers fn, called after stored credentials were
// cleared by a failed refresh. Requests failing after that, while nothing is
// stored, do not call it again.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

type refreshResult struct {
	token string
	err   error
}

// Client talks JSON to the backend. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	store     SessionStore
	log       *zap.Logger
	onExpired func()

	// mu guards refreshing and waiters. At most one refresh is in flight;
	// every other caller hitting 401 meanwhile parks a channel in waiters.
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

// New returns a Client for the backend at baseURL.
func New(baseURL string, store SessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends a request with body encoded as JSON and decodes a 2xx response
// into out. body and out may be nil. A 401 triggers one token refresh and a
// single replay of the request.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	auth := !isAuthPath(path)
	token := ""
	if auth {
		token = c.store.AccessToken()
	}

	resp, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && auth {
		drain(resp)
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, payload, fresh); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// refresh returns an access token newer than stale, running at most one
// refresh call at a time.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	// Another caller already replaced the token this request was sent with.
	if current := c.store.AccessToken(); current != "" && current != stale {
		c.mu.Unlock()
		return current, nil
	}
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	// Waiters depend on this call, so it must outlive the caller's cancellation.
	token, err := c.doRefresh(context.WithoutCancel(ctx))

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
	c.log.Debug("token refresh finished", zap.Int("waiters", len(waiters)), zap.Bool("ok", err == nil))
	return token, err
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	rt := c.store.RefreshToken()
	if rt == "" {
		// An empty store means an earlier cycle already expired the session.
		if c.store.AccessToken() != "" {
			c.expire()
		}
		return "", fmt.Errorf("%w: no refresh token", ErrSessionExpired)
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: rt})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.send(ctx, http.MethodPost, pathRefresh, payload, "")
	if err != nil {
		c.expire()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	defer resp.Body.Close()

	var tokens models.AuthTokens
	if err := decodeResponse(resp, &tokens); err != nil {
		c.expire()
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if tokens.Access == "" {
		c.expire()
		return "", fmt.Errorf("%w: empty access token", ErrSessionExpired)
	}

	if err := c.store.SetTokens(tokens.Access, tokens.Refresh); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}
	return tokens.Access, nil
}

// expire clears the session after a failed refresh.
func (c *Client) expire() {
	if err := c.store.ClearCredentials(); err != nil {
		c.log.Error("failed to clear credentials", zap.Error(err))
	}
	c.log.Warn("session expired")
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, &APIError{Message: msgNetwork, Err: err}
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: msgInvalidResponse, Err: err}
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func isAuthPath(path string) bool {
	switch path {
	case pathLogin, pathRegister, pathRefresh:
		return true
	}
	return false
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the account creation payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Login authenticates with email and password and stores the session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp models.AuthResponse
	if err := c.Do(ctx, http.MethodPost, pathLogin, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.startSession(resp)
}

// Register creates an account and stores the session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	var resp models.AuthResponse
	if err := c.Do(ctx, http.MethodPost, pathRegister, req, &resp); err != nil {
		return nil, err
	}
	return c.startSession(resp)
}

func (c *Client) startSession(resp models.AuthResponse) (*models.User, error) {
	if resp.Access == "" || resp.Refresh == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: msgInvalidResponse}
	}
	if err := c.store.SetTokens(resp.Access, resp.Refresh); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	if err := c.store.SaveUser(resp.User); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	c.log.Info("logged in", zap.String("user_id", resp.User.ID))
	return &resp.User, nil
}

// Logout forgets the stored session.
func (c *Client) Logout() error {
	return c.store.ClearCredentials()
}

// CurrentUser returns the user of the stored session, or nil.
func (c *Client) CurrentUser() (*models.User, error) {
	return c.store.User()
}

// Authenticated reports whether a session is stored.
func (c *Client) Authenticated() bool {
	return c.store.RefreshToken() != ""
}

// Package service provides the business logic of the reference backend,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/GlycoKeeper/internal/models"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// CreateUser stores a new user and its initial profile.
	// Returns models.ErrConflict if the email is taken.
	CreateUser(ctx context.Context, u models.User) error
	// GetUserByEmail returns models.ErrNotFound if no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns models.ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthService implements registration, login and token refresh.
type AuthService struct {
	repo   UserRepository
	tokens *TokenManager
	cost   int
}

// NewAuthService constructs a new AuthService using the provided repository.
func NewAuthService(repo UserRepository, tokens *TokenManager) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// Register creates a user and opens a session for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(*u)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.AuthTokens, error) {
	userID, err := s.tokens.Parse(refreshToken, RefreshToken)
	if err != nil {
		return models.AuthTokens{}, err
	}
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.AuthTokens{}, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return models.AuthTokens{}, err
	}
	return s.tokens.IssuePair(userID)
}

// Authenticate validates an access token and returns its user ID.
func (s *AuthService) Authenticate(token string) (string, error) {
	return s.tokens.Parse(token, AccessToken)
}

func (s *AuthService) session(u models.User) (*models.AuthResponse, error) {
	tokens, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = nil
	return &models.AuthResponse{AuthTokens: tokens, User: u}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

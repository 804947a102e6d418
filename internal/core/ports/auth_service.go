package ports

import (
	"context"

	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
)

// RegisterInput carries registration data. An empty Role means domain.RoleUser.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthResult is returned by a successful login.
type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// TokenPair is returned by a successful refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService defines the authentication and session use cases.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	Logout(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

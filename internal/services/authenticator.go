package services

import (
	"context"
	"log/slog"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"
)

// Authenticator is the gate in front of every owner-scoped operation.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*models.User, string, error)
}

type AuthenticatorImpl struct {
	tokens TokenManager
	users  repositories.UserRepository
	logger *slog.Logger
}

func NewAuthenticator(tokens TokenManager, users repositories.UserRepository, logger *slog.Logger) *AuthenticatorImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthenticatorImpl{tokens: tokens, users: users, logger: logger}
}

// Authenticate resolves an Authorization header value to the calling user
// and the token it presented. Every failure is ErrUnauthenticated.
func (a *AuthenticatorImpl) Authenticate(ctx context.Context, authorization string) (*models.User, string, error) {
	token := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	if token == "" {
		return nil, "", models.ErrUnauthenticated
	}

	userID, err := a.tokens.Validate(ctx, token)
	if err != nil {
		a.logger.DebugContext(ctx, "token rejected", "error", err)
		return nil, "", models.ErrUnauthenticated
	}

	user, err := a.users.FindByIDWithToken(ctx, userID, token)
	if err != nil || !user.HasToken(token) {
		a.logger.DebugContext(ctx, "session lookup failed", "user_id", userID, "error", err)
		return nil, "", models.ErrUnauthenticated
	}

	return user, token, nil
}

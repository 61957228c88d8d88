package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

type TokenManager interface {
	// Mint signs a session for userID without storing it.
	Mint(userID uuid.UUID) (*models.Token, error)
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	Validate(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, userID uuid.UUID, token string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type TokenConfig struct {
	Secret string
	Issuer string
	// TTL of zero issues tokens that never expire; they live until revoked.
	TTL time.Duration
}

type TokenManagerImpl struct {
	users  repositories.UserRepository
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(users repositories.UserRepository, config TokenConfig) *TokenManagerImpl {
	return &TokenManagerImpl{
		users:  users,
		secret: []byte(config.Secret),
		issuer: config.Issuer,
		ttl:    config.TTL,
		now:    time.Now,
	}
}

// Mint signs a token for userID. The random jti keeps two logins in the
// same second from colliding.
func (m *TokenManagerImpl) Mint(userID uuid.UUID) (*models.Token, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:       jti.String(),
		Subject:  userID.String(),
		Issuer:   m.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}

	var expiresAt *time.Time
	if m.ttl > 0 {
		exp := now.Add(m.ttl)
		expiresAt = &exp
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &models.Token{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    userID,
		Token:     signed,
		ExpiresAt: expiresAt,
	}, nil
}

// Issue mints a token and adds it to the user's live set.
func (m *TokenManagerImpl) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := m.Mint(userID)
	if err != nil {
		return "", err
	}
	if err := m.users.AddToken(ctx, token); err != nil {
		return "", err
	}
	return token.Token, nil
}

// Validate requires both a good signature and membership in the live set.
// Both failures come back as ErrInvalidToken.
func (m *TokenManagerImpl) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, models.ErrInvalidToken
	}

	live, err := m.users.TokenExists(ctx, userID, token)
	if err != nil {
		return uuid.Nil, err
	}
	if !live {
		return uuid.Nil, models.ErrInvalidToken
	}

	return userID, nil
}

func (m *TokenManagerImpl) Revoke(ctx context.Context, userID uuid.UUID, token string) error {
	return m.users.RemoveToken(ctx, userID, token)
}

func (m *TokenManagerImpl) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return m.users.RemoveAllTokens(ctx, userID)
}

// IsAuthError reports whether err should be answered with a bare 401.
func IsAuthError(err error) bool {
	return errors.Is(err, models.ErrInvalidToken) || errors.Is(err, models.ErrUnauthenticated)
}

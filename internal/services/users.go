package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
)

var userUpdateFields = map[string]struct{}{
	"name":     {},
	"email":    {},
	"password": {},
	"age":      {},
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// PurgeScheduler queues a re-run of the owner task purge after an account
// is deleted.
type PurgeScheduler interface {
	SchedulePurge(ctx context.Context, ownerID uuid.UUID) error
}

type UserDirectory interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Logout(ctx context.Context, user *models.User, token string) error
	LogoutAll(ctx context.Context, user *models.User) error
	UpdateSelf(ctx context.Context, user *models.User, patch map[string]interface{}) (*models.User, error)
	DeleteSelf(ctx context.Context, user *models.User) (*models.User, error)
	GetAvatar(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

type UserDirectoryImpl struct {
	users       repositories.UserRepository
	credentials CredentialStore
	tokens      TokenManager
	purges      PurgeScheduler
	logger      *slog.Logger
}

func NewUserDirectory(users repositories.UserRepository, credentials CredentialStore, tokens TokenManager, purges PurgeScheduler, logger *slog.Logger) *UserDirectoryImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserDirectoryImpl{
		users:       users,
		credentials: credentials,
		tokens:      tokens,
		purges:      purges,
		logger:      logger,
	}
}

// Register validates and stores a new user together with its first
// session, so a failure leaves neither behind.
func (s *UserDirectoryImpl) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	name, err := normalizeName(input.Name)
	if err != nil {
		return nil, "", err
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, "", err
	}
	if err := checkAge(input.Age); err != nil {
		return nil, "", err
	}
	password, err := normalizePassword(input.Password)
	if err != nil {
		return nil, "", err
	}

	digest, err := s.credentials.Hash(password)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		Email:    email,
		Age:      input.Age,
		Password: digest,
	}
	token, err := s.tokens.Mint(user.ID)
	if err != nil {
		return nil, "", err
	}
	if err := s.users.CreateWithToken(ctx, user, token); err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, token.Token, nil
}

// Login fails with the same ErrLoginFailed whether the email is unknown or
// the password is wrong.
func (s *UserDirectoryImpl) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.credentials.Verify(password, s.credentials.DummyDigest())
			return nil, "", models.ErrLoginFailed
		}
		return nil, "", err
	}

	if !s.credentials.Verify(password, user.Password) {
		return nil, "", models.ErrLoginFailed
	}

	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

func (s *UserDirectoryImpl) Logout(ctx context.Context, user *models.User, token string) error {
	return s.tokens.Revoke(ctx, user.ID, token)
}

func (s *UserDirectoryImpl) LogoutAll(ctx context.Context, user *models.User) error {
	return s.tokens.RevokeAll(ctx, user.ID)
}

// UpdateSelf validates the whole patch before writing any of it. A new
// password is hashed exactly once here.
func (s *UserDirectoryImpl) UpdateSelf(ctx context.Context, user *models.User, patch map[string]interface{}) (*models.User, error) {
	if err := checkAllowed(patch, userUpdateFields); err != nil {
		return nil, err
	}

	columns := make(map[string]interface{}, len(patch))

	if _, ok := patch["name"]; ok {
		raw, err := stringField(patch, "name")
		if err != nil {
			return nil, err
		}
		name, err := normalizeName(raw)
		if err != nil {
			return nil, err
		}
		columns["name"] = name
	}

	if _, ok := patch["email"]; ok {
		raw, err := stringField(patch, "email")
		if err != nil {
			return nil, err
		}
		email, err := normalizeEmail(raw)
		if err != nil {
			return nil, err
		}
		taken, err := s.users.EmailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: %w", models.ErrValidation, models.ErrDuplicateEmail)
		}
		columns["email"] = email
	}

	if _, ok := patch["age"]; ok {
		age, err := intField(patch, "age")
		if err != nil {
			return nil, err
		}
		if err := checkAge(age); err != nil {
			return nil, err
		}
		columns["age"] = age
	}

	if _, ok := patch["password"]; ok {
		raw, err := stringField(patch, "password")
		if err != nil {
			return nil, err
		}
		password, err := normalizePassword(raw)
		if err != nil {
			return nil, err
		}
		digest, err := s.credentials.Hash(password)
		if err != nil {
			return nil, err
		}
		columns["password"] = digest
	}

	return s.users.Update(ctx, user.ID, columns)
}

// DeleteSelf removes the user and every task it owns in one transaction,
// then queues an idempotent purge of the same owner.
func (s *UserDirectoryImpl) DeleteSelf(ctx context.Context, user *models.User) (*models.User, error) {
	if err := s.users.DeleteCascade(ctx, user.ID); err != nil {
		return nil, err
	}

	if s.purges != nil {
		if err := s.purges.SchedulePurge(ctx, user.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to schedule owner purge", "user_id", user.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", user.ID)
	return user, nil
}

func (s *UserDirectoryImpl) GetAvatar(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	return s.users.FindAvatar(ctx, userID)
}

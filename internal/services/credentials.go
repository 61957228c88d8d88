package services

import (
	"fmt"
	"strings"

	"task-tracker/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 7

type CredentialStore interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	// DummyDigest is compared against when there is no account, so an
	// unknown email costs as much as a wrong password.
	DummyDigest() string
}

type BcryptCredentialStore struct {
	cost  int
	dummy string
}

func NewCredentialStore(cost int) *BcryptCredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// the digest only has to be well formed at the same cost
	dummy, _ := bcrypt.GenerateFromPassword([]byte("no-such-account"), cost)
	return &BcryptCredentialStore{cost: cost, dummy: string(dummy)}
}

func (s *BcryptCredentialStore) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func (s *BcryptCredentialStore) Verify(plaintext, digest string) bool {
	return VerifyPassword(digest, plaintext)
}

func (s *BcryptCredentialStore) DummyDigest() string {
	return s.dummy
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

// normalizePassword trims the raw value and applies the strength rules that
// run before hashing.
func normalizePassword(raw string) (string, error) {
	password := strings.TrimSpace(raw)
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", models.ErrValidation, minPasswordLength)
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return "", fmt.Errorf("%w: password cannot contain \"password\"", models.ErrValidation)
	}
	return password, nil
}

package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Token is one live session of a user. Its presence is what keeps a signed
// bearer token valid.
type Token struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Token     string     `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" gorm:"index"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Token) TableName() string {
	return "user_tokens"
}

func (t *Token) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

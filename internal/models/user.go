package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is an account. Password holds the bcrypt digest only; it, the token
// set and the avatar never appear in the default JSON representation.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Age       int       `json:"age" gorm:"not null;default:0"`
	Password  string    `json:"-" gorm:"not null"`
	Avatar    []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tokens []Token `json:"-" gorm:"foreignKey:UserID"`
}

// PublicProfile is the login representation: password and tokens stripped,
// avatar kept.
type PublicProfile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	Avatar    []byte    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Age:       u.Age,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (u *User) HasAvatar() bool {
	return len(u.Avatar) > 0
}

// HasToken reports whether token is in the loaded token set.
func (u *User) HasToken(token string) bool {
	for _, t := range u.Tokens {
		if t.Token == token {
			return true
		}
	}
	return false
}

package repositories

import (
	"context"
	"time"

	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// CreateWithToken stores the user and its first session together or not
	// at all.
	CreateWithToken(ctx context.Context, user *models.User, token *models.Token) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByIDWithToken loads the user only while token is still in its live
	// set; Tokens holds just that entry.
	FindByIDWithToken(ctx context.Context, id uuid.UUID, token string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, exceptID uuid.UUID) (bool, error)
	Update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) (*models.User, error)
	DeleteCascade(ctx context.Context, id uuid.UUID) error

	AddToken(ctx context.Context, token *models.Token) error
	TokenExists(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	RemoveToken(ctx context.Context, userID uuid.UUID, token string) error
	RemoveAllTokens(ctx context.Context, userID uuid.UUID) error
	PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	FindAvatar(ctx context.Context, userID uuid.UUID) ([]byte, error)
	SetAvatar(ctx context.Context, userID uuid.UUID, avatar []byte) error
	ClearAvatar(ctx context.Context, userID uuid.UUID) error
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Omit("Tokens").Create(user).Error)
}

func (r *GormUserRepository) CreateWithToken(ctx context.Context, user *models.User, token *models.Token) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Tokens").Create(user).Error; err != nil {
			return err
		}
		token.UserID = user.ID
		return tx.Create(token).Error
	})
	return translate(err)
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByIDWithToken(ctx context.Context, id uuid.UUID, token string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Tokens", "token = ?", token).
		Where("id = ?", id).
		Where("EXISTS (SELECT 1 FROM user_tokens WHERE user_tokens.user_id = users.id AND user_tokens.token = ?)", token).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) EmailTaken(ctx context.Context, email string, exceptID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *GormUserRepository) Update(ctx context.Context, id uuid.UUID, columns map[string]interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(columns).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&user).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// DeleteCascade removes the user's tasks, then its tokens, then the user
// row, all in one transaction. A failure leaves everything in place.
func (r *GormUserRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err)
}

func (r *GormUserRepository) AddToken(ctx context.Context, token *models.Token) error {
	return translate(r.db.WithContext(ctx).Create(token).Error)
}

func (r *GormUserRepository) TokenExists(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Token{}).
		Where("user_id = ? AND token = ?", userID, token).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// RemoveToken is idempotent: removing an absent token is not an error.
func (r *GormUserRepository) RemoveToken(ctx context.Context, userID uuid.UUID, token string) error {
	return translate(r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.Token{}).Error)
}

func (r *GormUserRepository) RemoveAllTokens(ctx context.Context, userID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Token{}).Error)
}

func (r *GormUserRepository) PruneExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Token{})
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormUserRepository) FindAvatar(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "avatar").Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	if !user.HasAvatar() {
		return nil, models.ErrNotFound
	}
	return user.Avatar, nil
}

func (r *GormUserRepository) SetAvatar(ctx context.Context, userID uuid.UUID, avatar []byte) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("avatar", avatar)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearAvatar fails with ErrNotFound when there is no avatar to clear.
func (r *GormUserRepository) ClearAvatar(ctx context.Context, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND avatar IS NOT NULL", userID).
		Update("avatar", nil)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"errors"

	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskQuery is an already-validated listing request. SortColumn must be a
// real column name; a zero Limit means no limit.
type TaskQuery struct {
	Completed  *bool
	SortColumn string
	SortDesc   bool
	Limit      int
	Skip       int
}

// TaskRepository scopes every single-task operation by owner, so a task that
// belongs to someone else is reported as not found.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	UpdateOwned(ctx context.Context, ownerID, id uuid.UUID, columns map[string]interface{}) (*models.Task, error)
	DeleteOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID, query TaskQuery) ([]models.Task, error)
	DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		// the owner was deleted between authentication and insert
		return models.ErrUnauthenticated
	}
	return translate(err)
}

func (r *GormTaskRepository) FindOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&task).Error
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *GormTaskRepository) UpdateOwned(ctx context.Context, ownerID, id uuid.UUID, columns map[string]interface{}) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&task).Omit(clause.Associations).Updates(columns).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *GormTaskRepository) DeleteOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Task{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

func (r *GormTaskRepository) ListOwned(ctx context.Context, ownerID uuid.UUID, query TaskQuery) ([]models.Task, error) {
	db := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	if query.Completed != nil {
		db = db.Where("completed = ?", *query.Completed)
	}

	if query.SortColumn != "" {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: query.SortColumn}, Desc: query.SortDesc})
	} else {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}})
	}
	db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})

	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Skip > 0 {
		db = db.Offset(query.Skip)
	}

	tasks := []models.Task{}
	if err := db.Find(&tasks).Error; err != nil {
		return nil, translate(err)
	}
	return tasks, nil
}

// DeleteByOwner is safe to repeat; a second run deletes nothing.
func (r *GormTaskRepository) DeleteByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Task{})
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return result.RowsAffected, nil
}

package repositories

import (
	"errors"
	"fmt"

	"task-tracker/internal/models"

	"gorm.io/gorm"
)

// translate maps driver errors onto the model error taxonomy. Anything the
// store rejects for a reason other than a missing row or a duplicate email
// becomes a store failure.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", models.ErrValidation, models.ErrDuplicateEmail)
	default:
		return fmt.Errorf("%w: %v", models.ErrStore, err)
	}
}

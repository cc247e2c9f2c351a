package persistence

import (
	"errors"

	"github.com/rentalops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateWriteError maps constraint violations to domain conflicts. Requires gorm.Config.TranslateError.
func translateWriteError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewConflictError(shared.CodeConcurrentModification, message)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

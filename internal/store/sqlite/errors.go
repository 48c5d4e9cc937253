package sqlite

import (
	"errors"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

// asStoreError passes classified errors through and wraps anything else as
// an internal failure.
func asStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range []error{services.ErrNotFound, services.ErrConflict, services.ErrValidation, services.ErrInvalidTransition} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return store.Internal(operation, err)
}

package store

import (
	"fmt"

	"bomstudio/internal/services"
)

const stageName = "store"

// NotFound reports a lookup miss for entity id.
func NotFound(entity, id string) error {
	return services.Wrap(services.ErrNotFound, stageName, "get "+entity, fmt.Sprintf("%s %s not found", entity, id), nil)
}

// Conflict reports a unique-key violation.
func Conflict(operation, message string, err error) error {
	return services.Wrap(services.ErrConflict, stageName, operation, message, err)
}

// Invalid reports rejected input.
func Invalid(operation, message string, err error) error {
	return services.Wrap(services.ErrValidation, stageName, operation, message, err)
}

// Internal wraps an unexpected backend failure.
func Internal(operation string, err error) error {
	return services.Wrap(services.ErrInternal, stageName, operation, "", err)
}

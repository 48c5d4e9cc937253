package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrGeneration        = errors.New("generation error")
	ErrRender            = errors.New("render error")
	ErrTimeout           = errors.New("timeout")
	ErrExternalTool      = errors.New("external tool error")
	ErrConfiguration     = errors.New("configuration error")
	ErrInternal          = errors.New("internal error")
)

// Error kinds exposed over the API and in logs.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindInvalidTransition = "invalid_transition"
	KindGeneration        = "generation"
	KindRender            = "render"
	KindTimeout           = "timeout"
	KindExternalTool      = "external_tool"
	KindConfiguration     = "configuration"
	KindInternal          = "internal"
)

// ErrorDetails is the structured view of an error produced by Wrap.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type wrappedError struct {
	marker error
	ErrorDetails
}

func (e *wrappedError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker, detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, detail)
}

func (e *wrappedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrInternal
	}
	return &wrappedError{
		marker: marker,
		ErrorDetails: ErrorDetails{
			Kind:      kindOf(marker),
			Stage:     strings.TrimSpace(stage),
			Operation: strings.TrimSpace(operation),
			Message:   strings.TrimSpace(message),
			Cause:     err,
		},
	}
}

// Details returns the structured context attached by Wrap. Errors that were not
// produced by Wrap still report their kind.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var w *wrappedError
	if errors.As(err, &w) {
		return w.ErrorDetails
	}
	return ErrorDetails{Kind: Kind(err), Message: err.Error()}
}

// Kind classifies err against the sentinel markers.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return kindOf(marker)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

var markers = []error{
	ErrValidation,
	ErrNotFound,
	ErrConflict,
	ErrInvalidTransition,
	ErrTimeout,
	ErrGeneration,
	ErrRender,
	ErrExternalTool,
	ErrConfiguration,
	ErrInternal,
}

func kindOf(marker error) string {
	switch marker {
	case ErrValidation:
		return KindValidation
	case ErrNotFound:
		return KindNotFound
	case ErrConflict:
		return KindConflict
	case ErrInvalidTransition:
		return KindInvalidTransition
	case ErrGeneration:
		return KindGeneration
	case ErrRender:
		return KindRender
	case ErrTimeout:
		return KindTimeout
	case ErrExternalTool:
		return KindExternalTool
	case ErrConfiguration:
		return KindConfiguration
	default:
		return KindInternal
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

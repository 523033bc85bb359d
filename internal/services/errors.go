package services

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes surfaced by the render core. Callers classify with
// errors.Is to decide between "bad input", "engine trouble", and
// "try again later".
var (
	ErrValidation    = errors.New("validation error")
	ErrEngine        = errors.New("engine error")
	ErrEncoder       = errors.New("encoder error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the failure is worth resubmitting: pool or engine
// trouble heals over time, while validation and configuration failures do not.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrEngine), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// Class returns a short identifier for the failure class, used in job status
// reporting and logs.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEncoder):
		return "encoder"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEngine):
		return "engine"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

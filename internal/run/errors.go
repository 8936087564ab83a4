package run

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes a run failure; the category decides whether the
// driver aborts, and with what diagnosis.
type ErrorType int

const (
	ErrConfig ErrorType = iota
	ErrSource
	ErrRemote
	ErrFormat
	ErrPersistence
)

func (t ErrorType) String() string {
	switch t {
	case ErrConfig:
		return "Config"
	case ErrSource:
		return "Source"
	case ErrRemote:
		return "Remote"
	case ErrFormat:
		return "Format"
	case ErrPersistence:
		return "Persistence"
	default:
		return "Unknown"
	}
}

// Error is a categorized run error with optional diagnostic context and a
// cause chain.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsType reports whether err carries the given category anywhere in its
// chain.
func IsType(err error, errorType ErrorType) bool {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Type == errorType
	}
	return false
}

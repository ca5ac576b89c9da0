package errorx

import (
	"errors"
	"fmt"
)

// Category identifies the domain an error originated from.
type Category string

const (
	CategorySession    Category = "session"
	CategoryTool       Category = "tool"
	CategoryRouting    Category = "routing"
	CategoryEscalation Category = "escalation"
	CategoryValidation Category = "validation"
	CategoryLLM        Category = "llm"
	CategoryConfig     Category = "config"
	CategoryStorage    Category = "storage"
)

// Error is a categorized domain error. Recoverable means processing can
// continue with a fallback; Retryable means the same operation may be
// reattempted.
type Error struct {
	Category    Category
	Message     string
	Recoverable bool
	Retryable   bool
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a categorized error.
func New(category Category, message string, recoverable, retryable bool) *Error {
	return &Error{
		Category:    category,
		Message:     message,
		Recoverable: recoverable,
		Retryable:   retryable,
	}
}

// Wrap creates a categorized error wrapping an underlying cause.
func Wrap(err error, category Category, message string, recoverable, retryable bool) *Error {
	return &Error{
		Category:    category,
		Message:     message,
		Recoverable: recoverable,
		Retryable:   retryable,
		Err:         err,
	}
}

// Sentinel errors for API-boundary conditions. Both are non-recoverable at
// the boundary: the caller must start a new session or accept the terminal
// escalated state.
var (
	ErrSessionNotFound  = New(CategorySession, "session not found", false, false)
	ErrSessionEscalated = New(CategorySession, "session is escalated", false, false)
)

// SessionNotFound reports a missing session id.
func SessionNotFound(sessionID string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// IsRetryable reports whether the operation that produced err may be
// reattempted. Unknown errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsRecoverable reports whether processing can continue with a fallback.
func IsRecoverable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Recoverable
	}
	return false
}

// CategoryOf returns the category of err, or an empty category for errors
// produced outside this package.
func CategoryOf(err error) Category {
	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

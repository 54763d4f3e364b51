package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ScoutError is the structured error type for eventscout.
// It provides rich context for error handling, logging, and user presentation.
type ScoutError struct {
	// Code is the unique error code (e.g., "ERR_301_PROVIDER_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Cache, Transient, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ScoutError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ScoutError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ScoutError.
func (e *ScoutError) Is(target error) bool {
	if t, ok := target.(*ScoutError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ScoutError) WithDetail(key, value string) *ScoutError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *ScoutError) WithSuggestion(suggestion string) *ScoutError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ScoutError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ScoutError {
	return &ScoutError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ScoutError from an existing error.
// The error's message becomes the ScoutError message.
func Wrap(code string, err error) *ScoutError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ScoutError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a request-validation error.
// This is the only error class a search call surfaces to its caller.
func ValidationError(code, message string) *ScoutError {
	return New(code, message, nil)
}

// CacheError creates a cache backend error.
// Cache errors degrade to cache-miss behavior, never fail a request.
func CacheError(message string, cause error) *ScoutError {
	return New(ErrCodeCacheBackend, message, cause)
}

// TransientError creates a retryable provider error.
func TransientError(code, message string, cause error) *ScoutError {
	return New(code, message, cause)
}

// PermanentError creates a non-retryable provider error.
func PermanentError(code, message string, cause error) *ScoutError {
	return New(code, message, cause)
}

// RankError creates an AI ranking error.
func RankError(code, message string, cause error) *ScoutError {
	return New(code, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ScoutError {
	return New(ErrCodeInternal, message, cause)
}

// asScout extracts a ScoutError from anywhere in the chain.
func asScout(err error) (*ScoutError, bool) {
	var se *ScoutError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTransient reports whether an error is worth retrying.
// ScoutError codes drive the decision; raw network timeouts and context
// deadline expiry from unwrapped errors also count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := asScout(err); ok {
		return se.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsRetryable is an alias for IsTransient kept for the resilience layer.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// IsPermanent reports whether an error is a permanent provider failure.
func IsPermanent(err error) bool {
	if se, ok := asScout(err); ok {
		return se.Category == CategoryPermanent
	}
	return false
}

// IsCacheBackend reports whether an error came from a cache tier.
func IsCacheBackend(err error) bool {
	if se, ok := asScout(err); ok {
		return se.Category == CategoryCache
	}
	return false
}

// IsCircuitOpen reports whether an error carries the circuit-open code.
func IsCircuitOpen(err error) bool {
	return GetCode(err) == ErrCodeCircuitOpen
}

// IsParse reports whether an error is a ranking parse failure.
func IsParse(err error) bool {
	code := GetCode(err)
	return code == ErrCodeRankParse || code == ErrCodeRankShape
}

// IsValidation reports whether an error is a request validation failure.
func IsValidation(err error) bool {
	if se, ok := asScout(err); ok {
		return se.Category == CategoryConfig
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if se, ok := asScout(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ScoutError.
// Returns empty string if no ScoutError is in the chain.
func GetCode(err error) string {
	if se, ok := asScout(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ScoutError.
// Returns empty string if no ScoutError is in the chain.
func GetCategory(err error) Category {
	if se, ok := asScout(err); ok {
		return se.Category
	}
	return ""
}

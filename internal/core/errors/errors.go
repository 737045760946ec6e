package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// FirewallError represents a structured error with additional context
type FirewallError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface
func (e *FirewallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *FirewallError) Unwrap() error {
	return e.Err
}

// Is reports whether target carries the same code, so that errors built by the
// constructors below match the predefined sentinels.
func (e *FirewallError) Is(target error) bool {
	t, ok := target.(*FirewallError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of e carrying details. The receiver is left
// untouched so the predefined errors can be decorated safely.
func (e *FirewallError) WithDetails(details map[string]interface{}) *FirewallError {
	c := *e
	c.Details = details
	return &c
}

// WriteHTTP writes the error to an HTTP response
func (e *FirewallError) WriteHTTP(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	statusCode := e.HTTPStatusCode()
	if statusCode == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   e.Code,
		"message": e.Message,
		"details": e.Details,
	})
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *FirewallError) HTTPStatusCode() int {
	switch e.Code {
	case "RULES_FILE_NOT_FOUND", "NOT_FOUND":
		return http.StatusNotFound
	case "INVALID_CONFIG", "VALIDATION_FAILED":
		return http.StatusBadRequest
	case "RATE_LIMIT_EXCEEDED":
		return http.StatusTooManyRequests
	case "HISTORY_UNAVAILABLE", "COMMAND_FAILED":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors
var (
	ErrInvalidConfig = &FirewallError{
		Code:    "INVALID_CONFIG",
		Message: "Invalid configuration format",
	}

	ErrRulesFileNotFound = &FirewallError{
		Code:    "RULES_FILE_NOT_FOUND",
		Message: "Rules file not found",
	}

	ErrCommandFailed = &FirewallError{
		Code:    "COMMAND_FAILED",
		Message: "Firewall command failed",
	}

	ErrHistoryUnavailable = &FirewallError{
		Code:    "HISTORY_UNAVAILABLE",
		Message: "History store unavailable",
	}

	ErrNotFound = &FirewallError{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
	}

	ErrRateLimitExceeded = &FirewallError{
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: "Rate limit exceeded",
	}
)

// Helper functions for creating errors with context
func NewConfigError(message string, err error) *FirewallError {
	return &FirewallError{
		Code:    "CONFIG_ERROR",
		Message: message,
		Err:     err,
	}
}

func NewInvalidConfigError(path string, err error) *FirewallError {
	return &FirewallError{
		Code:    ErrInvalidConfig.Code,
		Message: fmt.Sprintf("failed to parse config file %s", path),
		Details: map[string]interface{}{
			"path": path,
		},
		Err: err,
	}
}

func NewCommandError(command, message string, err error) *FirewallError {
	return &FirewallError{
		Code:    "COMMAND_FAILED",
		Message: fmt.Sprintf("Command '%s': %s", command, message),
		Details: map[string]interface{}{
			"command": command,
		},
		Err: err,
	}
}

func NewRulesFileError(path string, err error) *FirewallError {
	return &FirewallError{
		Code:    "RULES_FILE_NOT_FOUND",
		Message: fmt.Sprintf("Rules file not found: %s", path),
		Details: map[string]interface{}{
			"path": path,
		},
		Err: err,
	}
}

func NewHistoryError(message string, err error) *FirewallError {
	return &FirewallError{
		Code:    "HISTORY_UNAVAILABLE",
		Message: message,
		Err:     err,
	}
}

func NewValidationError(field, message string) *FirewallError {
	return &FirewallError{
		Code:    "VALIDATION_FAILED",
		Message: fmt.Sprintf("Validation failed for field '%s': %s", field, message),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

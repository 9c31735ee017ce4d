package apierror

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`

	cause error
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an error with an explicit status and code.
func New(statusCode int, code, message string) *Error {
	return &Error{StatusCode: statusCode, Code: code, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the error that caused this one, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause records the underlying error for logging; it is never sent to clients.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

func withDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "BAD_REQUEST", message)
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return New(http.StatusBadRequest, "VALIDATION_ERROR", message).WithDetails(details...)
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", withDefault(message, "Authentication required"))
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, "FORBIDDEN", withDefault(message, "Access denied"))
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, "NOT_FOUND", withDefault(message, "Resource not found"))
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, "CONFLICT", message)
}

// PayloadTooLarge creates a 413 error for oversized bodies.
func PayloadTooLarge(message string) *Error {
	return New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", withDefault(message, "Request body too large"))
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", withDefault(message, "An unexpected error occurred"))
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", withDefault(message, "Service temporarily unavailable"))
}

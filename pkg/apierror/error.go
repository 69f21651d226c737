// Package apierror defines the error envelope returned by the API:
//
//	{"success": false, "error": {"code": "...", "message": "...", "details": [...], "data": {...}}}
package apierror

import (
	"encoding/json"
	"net/http"
)

// Machine readable error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRestricted         = "RESTRICTED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error is an error that knows its HTTP status and wire representation.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
	Data       interface{}  `json:"data,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// New creates an error; an empty message falls back to the status text.
func New(status int, code, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// WithData attaches a payload describing the failure, such as the rule that
// blocked a scan.
func (e *Error) WithData(data interface{}) *Error {
	e.Data = data
	return e
}

// ToJSON renders the error envelope.
func (e *Error) ToJSON() []byte {
	data, err := json.Marshal(envelope{Error: e})
	if err != nil {
		// Data failed to encode; send the rest.
		stripped := *e
		stripped.Data = nil
		data, _ = json.Marshal(envelope{Error: &stripped})
	}
	return data
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	return New(http.StatusBadRequest, CodeValidation, message).WithDetails(details...)
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, CodeForbidden, message)
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// Restricted creates a 422 error for a scan rejected by a restriction rule.
func Restricted(message string) *Error {
	return New(http.StatusUnprocessableEntity, CodeRestricted, message)
}

// BadGateway creates a 502 error for upstream failures.
func BadGateway(message string) *Error {
	if message == "" {
		message = "Upstream source unavailable"
	}
	return New(http.StatusBadGateway, CodeBadGateway, message)
}

func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return New(http.StatusInternalServerError, CodeInternal, message)
}

func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// Package errors defines the gateway's closed wire error taxonomy
// (spec §7) and the structured response envelope every handler writes
// errors through.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is one of the closed, stable identifiers the API returns on
// the wire (spec §7). Callers match on these strings, not on HTTP status
// alone — several codes share a status (e.g. 400 covers three of them).
type ErrorCode string

const (
	CodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeBoundsViolation  ErrorCode = "BOUNDS_VIOLATION"
	CodeUnknownCommand   ErrorCode = "UNKNOWN_COMMAND"
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeKeyNotFound      ErrorCode = "KEY_NOT_FOUND"
	CodeControllerError  ErrorCode = "CONTROLLER_ERROR"
	CodeExecutionError   ErrorCode = "EXECUTION_ERROR"
	CodeCancelled        ErrorCode = "CANCELLED"
)

// APIError is the structured error every handler returns on failure.
type APIError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`

	// RetryAfterMs is set only on RATE_LIMITED errors (spec §7).
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`
}

// ErrorResponse wraps APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError creates a new API error with the given code and message.
func NewAPIError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithDetails attaches structured detail (e.g. bounds-violation check
// results) to the error.
func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

// WithRequestID stamps the error with the inbound request's ID.
func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

// StatusCode maps the error code to an HTTP status (spec §6.1 "HTTP
// status mapping").
func (e *APIError) StatusCode() int {
	switch e.Code {
	case CodeInvalidRequest, CodeMissingParameter, CodeBoundsViolation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeUnknownCommand, CodeKeyNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeControllerError:
		return http.StatusBadGateway
	case CodeExecutionError:
		return http.StatusInternalServerError
	case CodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WriteError writes err as the JSON error envelope on w.
func WriteError(w http.ResponseWriter, err *APIError) {
	response := ErrorResponse{Error: *err}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	_ = json.NewEncoder(w).Encode(response)
}

// Helper constructors for each taxonomy member.

func InvalidRequest(message string) *APIError {
	return NewAPIError(CodeInvalidRequest, message)
}

func MissingParameter(name string) *APIError {
	return NewAPIError(CodeMissingParameter, fmt.Sprintf("missing required parameter %q", name))
}

func BoundsViolation(checks []string) *APIError {
	return NewAPIError(CodeBoundsViolation, "one or more safety bounds were violated").
		WithDetails(map[string]any{"errors": checks})
}

func UnknownCommand(kind string) *APIError {
	return NewAPIError(CodeUnknownCommand, fmt.Sprintf("unknown command kind %q", kind))
}

func Unauthenticated() *APIError {
	return NewAPIError(CodeUnauthenticated, "missing or invalid credential")
}

func PermissionDenied(capability string) *APIError {
	return NewAPIError(CodePermissionDenied, fmt.Sprintf("credential lacks %q capability", capability))
}

// RateLimited creates a rate-limit error carrying the wait time the
// client should observe before retrying.
func RateLimited(retryAfter time.Duration) *APIError {
	err := NewAPIError(CodeRateLimited, "rate limit exceeded")
	err.RetryAfterMs = retryAfter.Milliseconds()
	return err
}

func KeyNotFound(id string) *APIError {
	return NewAPIError(CodeKeyNotFound, fmt.Sprintf("credential %q not found", id))
}

func ControllerError(message string) *APIError {
	return NewAPIError(CodeControllerError, message)
}

func ExecutionError(message string) *APIError {
	return NewAPIError(CodeExecutionError, message)
}

func Cancelled(message string) *APIError {
	return NewAPIError(CodeCancelled, message)
}

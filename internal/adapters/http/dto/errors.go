// Package dto holds the request and response shapes of the admin API.
package dto

import "net/http"

// ErrorResponse is the envelope every failing admin endpoint returns.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail is the machine-readable part of an ErrorResponse.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

const (
	ErrorCodeNotFound     = "NOT_FOUND"
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeBadRequest   = "BAD_REQUEST"
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	ErrorCodeForbidden    = "FORBIDDEN"
	ErrorCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout      = "TIMEOUT"
	ErrorCodeInternal     = "INTERNAL_ERROR"

	// ErrorCodeStaleContext: captured context names an application that is
	// no longer running.
	ErrorCodeStaleContext = "STALE_CONTEXT"

	// ErrorCodeSaturated: the executor refused a task because its queue is
	// full or it is shutting down.
	ErrorCodeSaturated = "EXECUTOR_SATURATED"
)

var codeStatus = map[string]int{
	ErrorCodeNotFound:     http.StatusNotFound,
	ErrorCodeValidation:   http.StatusBadRequest,
	ErrorCodeBadRequest:   http.StatusBadRequest,
	ErrorCodeUnauthorized: http.StatusUnauthorized,
	ErrorCodeForbidden:    http.StatusForbidden,
	ErrorCodeUnavailable:  http.StatusServiceUnavailable,
	ErrorCodeTimeout:      http.StatusGatewayTimeout,
	ErrorCodeInternal:     http.StatusInternalServerError,
	ErrorCodeStaleContext: http.StatusConflict,
	ErrorCodeSaturated:    http.StatusServiceUnavailable,
}

// HTTPStatusFromCode maps an error code to its status. Unknown codes are
// internal errors.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// NewErrorResponse builds an envelope without field details.
func NewErrorResponse(code, message string) *ErrorResponse {
	return NewErrorResponseWithDetails(code, message, nil)
}

// NewErrorResponseWithDetails builds an envelope carrying per-field
// messages.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Code: code, Message: message, Details: details}}
}

// WithTraceID sets the trace ID and returns e.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

package dto

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
	"github.com/jsamuelsen/managed-concurrency/internal/platform/logging"
)

// GetTraceID returns the request's trace ID, or "" when it is not traced.
func GetTraceID(c *gin.Context) string {
	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}

// MapDomainError maps a domain error to a status and error envelope. Illegal
// state means context was captured for an application that has since
// stopped. Unknown errors map to 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	switch {
	case err == nil:
		return http.StatusOK, nil

	case domain.IsNotFound(err):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.IsIllegalState(err):
		return http.StatusConflict, NewErrorResponse(ErrorCodeStaleContext, err.Error())

	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())

		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) && validationErr.Field != "" {
			resp.Error.Details = map[string]string{validationErr.Field: validationErr.Message}
		}

		return http.StatusBadRequest, resp

	case domain.IsUnavailable(err):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodeUnavailable, err.Error())

	default:
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}
}

// HandleError writes the envelope for err. Internal errors are logged with
// their detail, which the response never carries.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// RespondWithCode writes an envelope for an adapter-level error code.
func RespondWithCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}

// RespondWithValidationErrors writes a 400 with field-level details.
func RespondWithValidationErrors(c *gin.Context, err error) {
	details := ValidationErrors(err)

	message := "request validation failed"
	if len(details) == 0 {
		message = err.Error()
	}

	c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(ErrorCodeValidation, message, details).WithTraceID(GetTraceID(c)))
}

// errors.go - Structured error handling for API responses
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tablechat/backend/internal/qerr"
)

// APIError represents a structured API error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error.
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field.
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewInternalError creates a 500 Internal Server Error.
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// statusForKind maps the domain error taxonomy to HTTP status codes. The
// code in the response body is always the stable kind, so clients can branch
// without parsing messages.
func statusForKind(kind qerr.Kind) int {
	switch kind {
	case qerr.KindValidation:
		return http.StatusBadRequest
	case qerr.KindUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case qerr.KindGeneration:
		return http.StatusBadGateway
	case qerr.KindScopeViolation:
		return http.StatusForbidden
	case qerr.KindUnsupportedOperation:
		return http.StatusBadRequest
	case qerr.KindTimeout:
		return http.StatusGatewayTimeout
	case qerr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromDomain converts a domain error into an APIError, preserving the kind.
func FromDomain(err error) *APIError {
	if kind := qerr.KindOf(err); kind != "" {
		return &APIError{
			Status:  statusForKind(kind),
			Code:    string(kind),
			Message: err.Error(),
		}
	}
	return NewInternalError("unexpected error", err)
}

// ErrorHandler is the echo HTTP error handler.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		if kind := qerr.KindOf(err); kind != "" {
			apiErr = FromDomain(err)
		} else {
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
				Details: err.Error(),
			}
		}
	}

	c.JSON(apiErr.Status, apiErr)
}

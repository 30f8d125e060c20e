// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"estatebot_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

const (
	msgInternal    = "something went wrong, please try again"
	msgUnavailable = "service temporarily unavailable, please try again"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError maps domain errors to HTTP responses.
// The typed *apperr.Error is located anywhere in the error chain, so errors
// wrapped by orchestration layers still map to their Kind's status code.
// Internal and unavailable errors never leak their underlying message to the
// caller. Returns true if an error was handled.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		message := domainErr.Message
		switch domainErr.Kind {
		case apperr.KindInternal:
			message = msgInternal
		case apperr.KindUnavailable:
			message = msgUnavailable
		}
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   message,
			Details: domainErr.Details,
		})
		return true
	}

	// Untyped errors are internal by definition; never echo them to callers.
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
	return true
}

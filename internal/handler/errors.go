package handler

import (
	"errors"
	"net/http"
	"strings"

	"reinf/internal/apperr"
	"reinf/internal/logger"
	"reinf/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{apperr.ErrValidation, http.StatusBadRequest},
	{apperr.ErrSelfDeletion, http.StatusBadRequest},
	{apperr.ErrUnauthenticated, http.StatusUnauthorized},
	{apperr.ErrUnauthorized, http.StatusForbidden},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrDuplicateEntry, http.StatusConflict},
	{apperr.ErrConflict, http.StatusConflict},
	{apperr.ErrConcurrentModification, http.StatusConflict},
	{apperr.ErrTerminalState, http.StatusUnprocessableEntity},
	{apperr.ErrInvalidState, http.StatusUnprocessableEntity},
	{apperr.ErrIncompleteData, http.StatusUnprocessableEntity},
}

// statusFor maps a service error to its HTTP status; unknown errors are 500
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err in the standard envelope. Internal errors are logged
// in full; the client gets only our own outermost context and the request id.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = internalMessage(err, c.GetString("request_id"))
	}
	c.JSON(status, response.Error(status, msg))
}

// internalMessage keeps the "failed to ..." prefix our code wraps errors
// with and drops the driver text after it.
func internalMessage(err error, requestID string) string {
	msg := "Internal server error"
	if head, _, found := strings.Cut(err.Error(), ": "); found && strings.HasPrefix(head, "failed to ") {
		msg += ": " + head
	}
	if requestID != "" {
		msg += " (request_id=" + requestID + ")"
	}
	return msg
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

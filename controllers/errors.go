package controllers

import (
	"errors"
	"log"
	"net/http"

	"laptop_tracker/app"
	"laptop_tracker/lifecycle"
)

// statusFor maps a lifecycle error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrDuplicateSerial),
		errors.Is(err, lifecycle.ErrDuplicateName),
		errors.Is(err, lifecycle.ErrDuplicateID),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrNoActiveAssignment):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers {"error", "code"}; unknown errors are logged and
// hidden behind a generic message.
func writeError(c *app.Ctx, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.JSON(status, app.H{"error": msg, "code": lifecycle.Outcome(err)})
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/notify"
	"github.com/taskherd/taskherd/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var transition *domain.InvalidTransitionError
	var validation *domain.ValidationError

	switch {
	// Lifecycle conflicts
	case errors.As(err, &transition),
		errors.Is(err, domain.ErrPriorityLocked):
		return http.StatusConflict

	// Missing prerequisites for a lifecycle operation
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrAssigneeNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrHandleExists),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrPastDate),
		errors.Is(err, domain.ErrTaskDescriptionEmpty),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTaskPriority):
		return http.StatusBadRequest

	// The assignee could not be notified, so the operation did not take
	// effect. The upstream delivery platform is the failing party.
	case errors.Is(err, notify.ErrUnreachable),
		errors.Is(err, notify.ErrRetriesExhausted):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var transition *domain.InvalidTransitionError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &transition):
		// The transition pair is domain data, safe to show.
		return transition.Error()

	case errors.As(err, &validation):
		return validation.Error()

	case errors.Is(err, domain.ErrPriorityLocked):
		return "High priority task deadlines cannot be postponed"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrAssigneeNotFound):
		return "Assignee not found"

	case errors.Is(err, store.ErrHandleExists),
		errors.Is(err, store.ErrDuplicate):
		return "Entry already exists"

	case errors.Is(err, domain.ErrInvalidDate):
		return "Deadline must be a valid YYYY-MM-DD date"

	case errors.Is(err, domain.ErrPastDate):
		return "Deadline cannot be earlier than today"

	case errors.Is(err, domain.ErrTaskDescriptionEmpty):
		return "Task description cannot be empty"

	case errors.Is(err, domain.ErrInvalidTaskStatus):
		return "Invalid task status"

	case errors.Is(err, domain.ErrInvalidTaskPriority):
		return "Invalid task priority"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, notify.ErrUnreachable):
		return "The assignee cannot be notified"

	case errors.Is(err, notify.ErrRetriesExhausted):
		return "Notification delivery failed, try again later"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Check if this is likely a validation error message
	if strings.Contains(errMsg, "Field validation") {
		// Extract the field name and validation tag
		// Example format: "Key: 'CreateTaskRequest.Description' Error:Field validation for 'Description' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "datetime":
		return "invalid date format"
	default:
		return "validation failed"
	}
}

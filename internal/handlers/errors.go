package handlers

import (
	"context"
	"errors"
	"net/http"

	"pmo-dashboard/internal/apiclient"
	"pmo-dashboard/internal/auth"
	"pmo-dashboard/internal/projects"
	"pmo-dashboard/internal/tasks"
	"pmo-dashboard/internal/workflow"
)

// FieldError is a validation failure that names the offending form fields.
// Every flow package's ValidationError implements it.
type FieldError interface {
	error
	InvalidFields() []string
}

// Classify maps err to an HTTP status and an error code.
func Classify(err error) (int, string) {
	var (
		maxBytes *http.MaxBytesError
		fieldErr FieldError
		apiErr   *apiclient.APIError
		connErr  *apiclient.ConnectionError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, workflow.ErrTransitionNotAllowed):
		return http.StatusConflict, "TRANSITION_NOT_ALLOWED"
	case errors.Is(err, workflow.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"
	case errors.Is(err, workflow.ErrNoFinishedCycle):
		return http.StatusBadGateway, "CYCLE_NOT_IDENTIFIED"
	case errors.Is(err, tasks.ErrNotConfirmed), errors.Is(err, projects.ErrNotConfirmed):
		return http.StatusPreconditionRequired, "CONFIRMATION_REQUIRED"
	case errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apiclient.ErrUnauthorized):
		return http.StatusUnauthorized, "UPSTREAM_UNAUTHORIZED"
	case errors.As(err, &apiErr):
		return apiErr.Status, "UPSTREAM_ERROR"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.As(err, &connErr):
		return http.StatusBadGateway, "BACKEND_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// WriteError writes err in the standard error envelope. Backend 401s carry
// the login redirect so the browser signs in again.
func WriteError(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	resp := auth.ErrorResponse{Error: err.Error(), Code: code, Fields: FieldsOf(err)}
	if status == http.StatusUnauthorized {
		resp.Redirect = auth.LoginPath
	}
	auth.SendErrorResponse(w, resp, status)
}

// FieldsOf returns the invalid fields carried by err, if any.
func FieldsOf(err error) []string {
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.InvalidFields()
	}
	return nil
}

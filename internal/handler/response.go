package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"callcenter-ops/internal/model"
	"callcenter-ops/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	case errors.Is(err, model.ErrUserAlreadyExists):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "Email is already registered"
	case errors.Is(err, model.ErrNoActiveReset):
		status = http.StatusBadRequest
		body.Code = "NO_ACTIVE_RESET"
		body.Message = "There is no active password reset request"
	case errors.Is(err, model.ErrResetExpired):
		status = http.StatusBadRequest
		body.Code = "RESET_EXPIRED"
		body.Message = "The reset link has expired. Please request a new one"
	case errors.Is(err, model.ErrResetTooManyAttempts):
		status = http.StatusBadRequest
		body.Code = "TOO_MANY_ATTEMPTS"
		body.Message = "Too many attempts. Please request a new reset link"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid or expired token"
	default:
		// Log unclassified errors so they are visible in server logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// resetErrorMessage maps reset flow failures to the user-facing message of
// the precheck endpoint, which always answers 200 with validity in the body.
func resetErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrNoActiveReset):
		return "There is no active password reset request"
	case errors.Is(err, model.ErrResetExpired):
		return "The reset link has expired. Please request a new one"
	case errors.Is(err, model.ErrResetTooManyAttempts):
		return "Too many attempts. Please request a new reset link"
	case errors.Is(err, model.ErrUserNotFound):
		return "User not found"
	default:
		return "Invalid or expired token"
	}
}

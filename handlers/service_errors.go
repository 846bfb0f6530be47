package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/authcore/services"
	"github.com/upb/authcore/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Messages for
// authentication and registration failures are fixed strings so responses
// never reveal whether an email is registered.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var writeErr error
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		writeErr = utils.WriteConflict(w, "registration failed", nil)

	case errors.Is(err, services.ErrInvalidCredential):
		writeErr = utils.WriteUnauthorized(w, "Invalid credentials")

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, "")

	case errors.Is(err, services.ErrSelfDeletion):
		writeErr = utils.WriteForbidden(w, "Administrators cannot delete their own account")

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, "")

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, domainMessage(err), services.GetErrorDetails(err))

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, domainMessage(err))

	case services.IsRateLimitError(err):
		writeErr = utils.WriteTooManyRequests(w, domainMessage(err), 0)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, domainMessage(err), nil)

	case services.IsExternalError(err):
		logger.Warn("dependency unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, "")

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// domainMessage returns the client-facing message of a domain error
// without its wrapped cause.
func domainMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

package httpserver

import (
	"context"
	"errors"
	"net/http"

	domainerrors "courier/contexts/notifications/orders-service/domain/errors"
	ordershttp "courier/contexts/notifications/orders-service/transport/http"
	"courier/internal/platform/observability"
)

// StatusClientClosedRequest reports a request the caller abandoned. The
// idempotency key stays usable when nothing was written.
const StatusClientClosedRequest = 499

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domainerrors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, domainerrors.ErrValidation),
		errors.Is(err, domainerrors.ErrMissingIdempotencyID):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidFeedQuery):
		writeError(w, http.StatusBadRequest, "invalid_feed_query", err.Error())
	case errors.Is(err, domainerrors.ErrMissingCreator):
		writeError(w, http.StatusUnauthorized, "missing_creator", err.Error())
	case errors.Is(err, domainerrors.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrCancellationProhibited):
		writeError(w, http.StatusConflict, "cancellation_prohibited", err.Error())
	case errors.Is(err, domainerrors.ErrRequestTerminated),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, StatusClientClosedRequest, "request_terminated", "request terminated before completion")
	default:
		observability.LoggerFrom(r.Context(), s.logger).Error("request failed",
			"event", "http_request_failed",
			"module", logModule,
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, verr *domainerrors.ValidationError) {
	resp := ordershttp.ValidationErrorResponse{
		Code:    "validation_failed",
		Message: domainerrors.ErrValidation.Error(),
		Errors:  make([]ordershttp.FieldErrorDTO, 0, len(verr.Failures)),
	}
	for _, failure := range verr.Failures {
		resp.Errors = append(resp.Errors, ordershttp.FieldErrorDTO{
			Field:   failure.Field,
			Message: failure.Message,
		})
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ordershttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

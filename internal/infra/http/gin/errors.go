package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/identity"
	"staybook/internal/app/middleware"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/property"
	"staybook/internal/infra/validation"
)

// writeError maps application errors onto HTTP responses. Transition and
// concurrency conflicts carry the booking's actual status so that clients
// can refresh instead of retrying blindly.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	body := gin.H{"error": err.Error(), "code": code}

	var verr *validation.Error
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if current, ok := booking.CurrentStatus(err); ok {
		body["current_status"] = string(current)
		allowed := booking.AllowedTargets(current)
		next := make([]string, len(allowed))
		for i, s := range allowed {
			next[i] = string(s)
		}
		body["allowed"] = next
	}
	if status >= http.StatusInternalServerError {
		body["error"] = "internal error"
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", slog.String("route", c.FullPath()), slog.Any("error", err))
		}
	}
	c.JSON(status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, identity.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, property.ErrNotFound):
		return http.StatusNotFound, "property_not_found"
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, booking.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, booking.ErrUnavailable):
		return http.StatusConflict, "unavailable"
	case errors.Is(err, booking.ErrDeadlineNotReached):
		return http.StatusConflict, "deadline_not_reached"
	case errors.Is(err, booking.ErrCommissionFrozen):
		return http.StatusConflict, "commission_frozen"
	case errors.Is(err, middleware.ErrIdempotencyReuse):
		return http.StatusConflict, "idempotency_key_reused"
	case errors.Is(err, middleware.ErrIdempotencyInFlight):
		return http.StatusConflict, "idempotency_request_in_progress"
	case errors.Is(err, booking.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity, "capacity_exceeded"
	case errors.Is(err, booking.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

package handlers

import (
	"errors"
	"net/http"

	"plantscan/internal/domain"
)

// fail maps the domain error taxonomy onto the HTTP error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg := classify(err)
	ev := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = a.Logger.Error()
	}
	ev.Err(err).Str("op", op).Str("code", code).Msg("request failed")
	if code == "provider_saturated" {
		w.Header().Set("Retry-After", "30")
	}
	a.error(w, r, status, code, msg)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusServiceUnavailable, "provider_saturated", msgProviderSaturated
	case errors.Is(err, domain.ErrIdentificationTimeout):
		return http.StatusGatewayTimeout, "identification_timeout", msgIdentificationTimeout
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusBadGateway, "identification_failed", msgIdentificationFailed
	case errors.Is(err, domain.ErrTransientStorage):
		return http.StatusServiceUnavailable, "storage_unavailable", msgStorageUnavailable
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, "misconfigured", msgMisconfigured
	case errors.Is(err, domain.ErrGardenFull):
		return http.StatusConflict, "garden_full", msgGardenFull
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized", msgSignInRequired
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", msgNotFound
	case errors.Is(err, domain.ErrSubscriptionCancelled):
		return http.StatusConflict, "bad_request", msgAlreadyCancelled
	case errors.Is(err, domain.ErrInvalidSubject), errors.Is(err, domain.ErrInvalidTier):
		return http.StatusBadRequest, "bad_request", msgInvalidRequest
	default:
		return http.StatusInternalServerError, "internal", msgInternal
	}
}

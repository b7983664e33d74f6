package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"plantscan/internal/domain"
	"plantscan/internal/middleware"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: redis down", domain.ErrTransientStorage), http.StatusServiceUnavailable, "storage_unavailable"},
		{domain.ErrRateLimited, http.StatusServiceUnavailable, "provider_saturated"},
		{fmt.Errorf("%w: %w", domain.ErrIdentificationTimeout, context.DeadlineExceeded), http.StatusGatewayTimeout, "identification_timeout"},
		{domain.ErrServiceUnavailable, http.StatusBadGateway, "identification_failed"},
		{domain.ErrConfiguration, http.StatusInternalServerError, "misconfigured"},
		{domain.ErrGardenFull, http.StatusConflict, "garden_full"},
		{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrInvalidTier, http.StatusBadRequest, "bad_request"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			status, code, msg := classify(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
			}
			if msg == "" {
				t.Fatal("empty message key")
			}
		})
	}
}

func TestLocalize(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.LocaleKey, "fr")
	if got := localize(ctx, msgGardenFull); got == msgGardenFull {
		t.Fatalf("french translation missing for %q", msgGardenFull)
	}
	if got := localize(context.Background(), msgQuotaExhausted, 2); got != "you have used all 2 free scans for today" {
		t.Fatalf("english message = %q", got)
	}
}

func TestSignPayload(t *testing.T) {
	a := SignPayload("secret", []byte(`{"user_id":"42"}`))
	if len(a) != 128 {
		t.Fatalf("signature length = %d, want 128 hex chars", len(a))
	}
	if a == SignPayload("other", []byte(`{"user_id":"42"}`)) {
		t.Fatal("signature does not depend on secret")
	}
}

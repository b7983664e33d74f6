package handlers

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"plantscan/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA512 of the webhook body.
const SignatureHeader = "X-Signature"

const maxWebhookBytes = 64 << 10

// SignPayload returns the signature the payment collaborator attaches to body.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// PaymentsWebhook activates a subscription from a signed payment event.
// Replayed events answer 200 with the stored subscription.
func (a *App) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	if a.WebhookSecret == "" {
		a.Logger.Error().Msg("payment webhook received but PAYMENT_WEBHOOK_SECRET is not set")
		a.fail(w, r, "payments.webhook", domain.ErrConfiguration)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	given := strings.TrimSpace(r.Header.Get(SignatureHeader))
	expected := SignPayload(a.WebhookSecret, body)
	if !hmac.Equal([]byte(strings.ToLower(given)), []byte(expected)) {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", msgInvalidSignature)
		return
	}

	var event domain.ActivationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	tier, err := domain.ParsePlanTier(string(event.PlanTier))
	if err != nil || !tier.IsPaid() {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidRequest)
		return
	}
	cycle, err := domain.ParseBillingCycle(string(event.BillingCycle))
	if err != nil || strings.TrimSpace(event.UserID) == "" || strings.TrimSpace(event.PaymentReference) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidRequest)
		return
	}
	event.PlanTier, event.BillingCycle = tier, cycle

	sub, created, err := a.Ledger.Activate(r.Context(), event)
	if err != nil {
		a.fail(w, r, "payments.webhook", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	a.json(w, status, map[string]any{
		"created":      created,
		"subscription": newSubscriptionDTO(sub, a.Clock.Now()),
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"plantscan/internal/domain"
)

type subscriptionDTO struct {
	ID           string                    `json:"id"`
	PlanTier     domain.PlanTier           `json:"plan_tier"`
	BillingCycle domain.BillingCycle       `json:"billing_cycle"`
	Status       domain.SubscriptionStatus `json:"status"`
	StartDate    time.Time                 `json:"start_date"`
	EndDate      time.Time                 `json:"end_date"`
}

func newSubscriptionDTO(sub *domain.Subscription, now time.Time) *subscriptionDTO {
	if sub == nil {
		return nil
	}
	return &subscriptionDTO{
		ID:           sub.ID,
		PlanTier:     sub.PlanTier,
		BillingCycle: sub.BillingCycle,
		Status:       sub.EffectiveStatus(now),
		StartDate:    sub.StartDate,
		EndDate:      sub.EndDate,
	}
}

// SubscriptionGet reports the subject's effective entitlement. Guests are
// always on the free tier.
func (a *App) SubscriptionGet(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	snap, err := a.Ledger.Refresh(r.Context(), subject)
	if err != nil && !errors.Is(err, domain.ErrTransientStorage) {
		a.fail(w, r, "subscription.get", err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"tier":         snap.Tier,
		"status":       snap.Status,
		"active":       snap.Active(),
		"subscription": newSubscriptionDTO(snap.Subscription, a.Clock.Now()),
		"stale":        snap.Stale,
	})
}

type cancelRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

func (a *App) SubscriptionCancel(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	if strings.TrimSpace(req.SubscriptionID) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgSubscriptionRequired)
		return
	}
	sub, err := a.Ledger.Cancel(r.Context(), subject, req.SubscriptionID)
	if err != nil {
		a.fail(w, r, "subscription.cancel", err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"subscription": newSubscriptionDTO(sub, a.Clock.Now())})
}

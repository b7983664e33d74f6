package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/quota"
	"plantscan/internal/subscription"
)

type quotaDTO struct {
	Subject      string                    `json:"subject"`
	Tier         domain.PlanTier           `json:"tier"`
	Status       domain.SubscriptionStatus `json:"subscription_status,omitempty"`
	DayKey       string                    `json:"day_key"`
	Used         int                       `json:"used"`
	Bonus        int                       `json:"bonus"`
	ClicksToday  int                       `json:"clicks_today"`
	Remaining    int                       `json:"remaining"`
	Limit        int                       `json:"limit"`
	Allowed      bool                      `json:"allowed"`
	Reason       string                    `json:"reason"`
	CanEarnBonus bool                      `json:"can_earn_bonus"`
	ResetsAt     time.Time                 `json:"resets_at"`
	Stale        bool                      `json:"stale,omitempty"`
}

func (a *App) quotaView(ctx context.Context, rem quota.Remaining, snap subscription.Snapshot) quotaDTO {
	return quotaDTO{
		Subject:      rem.Subject.Key(),
		Tier:         snap.Tier,
		Status:       snap.Status,
		DayKey:       rem.DayKey,
		Used:         rem.Used,
		Bonus:        rem.Bonus,
		ClicksToday:  rem.ClicksToday,
		Remaining:    rem.Remaining,
		Limit:        rem.Limit,
		Allowed:      rem.Allowed,
		Reason:       string(rem.Reason),
		CanEarnBonus: rem.CanEarnBonus,
		ResetsAt:     clock.NextMidnight(a.Clock.Now(), a.Clock.Location(ctx)),
		Stale:        rem.Stale || snap.Stale,
	}
}

// QuotaGet returns the subject's remaining scans for today.
func (a *App) QuotaGet(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	rem, snap, err := a.Gate.GetRemaining(r.Context(), subject)
	if err != nil {
		// Last observed counts are still worth displaying; Allowed is already false.
		if errors.Is(err, domain.ErrTransientStorage) && rem.Stale && rem.DayKey != "" {
			a.Logger.Warn().Err(err).Str("subject", subject.Key()).Msg("serving stale quota")
			a.json(w, http.StatusOK, a.quotaView(r.Context(), rem, snap))
			return
		}
		a.fail(w, r, "quota.get", err)
		return
	}
	a.json(w, http.StatusOK, a.quotaView(r.Context(), rem, snap))
}

// QuotaBonus records a fully watched rewarded ad. Once the daily ad cap is
// reached the call is a no-op reported with applied=false.
func (a *App) QuotaBonus(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	_, applied, err := a.Gate.RecordEarnedBonus(r.Context(), subject)
	if err != nil {
		a.fail(w, r, "quota.bonus", err)
		return
	}
	rem, snap, err := a.Gate.GetRemaining(r.Context(), subject)
	if err != nil {
		a.fail(w, r, "quota.bonus", err)
		return
	}
	body := map[string]any{
		"applied": applied,
		"quota":   a.quotaView(r.Context(), rem, snap),
	}
	if !applied {
		body["message"] = localize(r.Context(), msgBonusCapReached)
	}
	a.json(w, http.StatusOK, body)
}

// QuotaEvents streams the subject's quota as server-sent events: one snapshot on
// connect and one "rollover" event each time the local day advances.
func (a *App) QuotaEvents(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, r, http.StatusInternalServerError, "internal", msgInternal)
		return
	}
	ctx := r.Context()
	rem, snap, err := a.Gate.GetRemaining(ctx, subject)
	if err != nil {
		a.fail(w, r, "quota.events", err)
		return
	}

	// Watch before the first event so a rollover right after it is not missed.
	rolled := make(chan struct{}, 1)
	watcher := a.Quota.WatchRollover(ctx, subject, func(quota.Usage) {
		select {
		case rolled <- struct{}{}:
		default:
		}
	})
	defer watcher.Stop()

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, "quota", a.quotaView(ctx, rem, snap)); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := a.EventsHeartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Done():
			return
		case <-a.Draining:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-rolled:
			rem, snap, err := a.Gate.GetRemaining(ctx, subject)
			if err != nil {
				a.Logger.Warn().Err(err).Str("subject", subject.Key()).Msg("quota refresh after rollover failed")
				continue
			}
			if err := writeEvent(w, "rollover", a.quotaView(ctx, rem, snap)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}

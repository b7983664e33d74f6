// Package subscription resolves the plan tier a subject is entitled to and
// records purchases.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
)

// DefaultCacheTTL bounds how long a fetched subscription is reused.
const DefaultCacheTTL = 30 * time.Second

// Snapshot is the entitlement of a subject at one instant.
type Snapshot struct {
	Subject      domain.Subject
	Subscription *domain.Subscription
	Tier         domain.PlanTier
	Status       domain.SubscriptionStatus
	// Stale is set when the last fetch failed and the value is the last
	// known-good one (or Free when none was ever fetched).
	Stale     bool
	FetchedAt time.Time
}

// Active reports whether the snapshot grants a paid tier.
func (s Snapshot) Active() bool {
	return s.Status == domain.SubscriptionActive && s.Tier.IsPaid()
}

type entry struct {
	sub       *domain.Subscription
	fetchedAt time.Time
	failed    bool
}

// Ledger caches subscriptions per subject. It is safe for concurrent use.
type Ledger struct {
	store  domain.SubscriptionStore
	clock  clock.Source
	logger zerolog.Logger
	ttl    time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]entry
}

// NewLedger wires a Ledger over store. A non-positive ttl selects DefaultCacheTTL.
func NewLedger(store domain.SubscriptionStore, src clock.Source, logger zerolog.Logger, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Ledger{
		store:  store,
		clock:  src,
		logger: logger.With().Str("component", "subscription").Logger(),
		ttl:    ttl,
		cache:  make(map[string]entry),
	}
}

// Refresh returns the subject's current entitlement, fetching it when the cached
// value is older than the TTL. Guests always resolve to Free.
//
// When the fetch fails the last known-good value is returned with Stale set,
// together with an error wrapping domain.ErrTransientStorage. A paying user is
// never downgraded because the store was unreachable.
func (l *Ledger) Refresh(ctx context.Context, subject domain.Subject) (Snapshot, error) {
	if err := subject.Validate(); err != nil {
		return Snapshot{}, err
	}
	now := l.clock.Now()
	if subject.IsGuest() {
		return Snapshot{Subject: subject, Tier: domain.PlanFree, Status: domain.SubscriptionNone, FetchedAt: now}, nil
	}

	if e, ok := l.cached(subject); ok && !e.failed && now.Sub(e.fetchedAt) < l.ttl {
		return l.snapshot(subject, e, now, false), nil
	}
	return l.fetch(ctx, subject)
}

// Revalidate bypasses the cache.
func (l *Ledger) Revalidate(ctx context.Context, subject domain.Subject) (Snapshot, error) {
	if err := subject.Validate(); err != nil {
		return Snapshot{}, err
	}
	if subject.IsGuest() {
		return l.Refresh(ctx, subject)
	}
	return l.fetch(ctx, subject)
}

func (l *Ledger) fetch(ctx context.Context, subject domain.Subject) (Snapshot, error) {
	key := subject.Key()
	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		now := l.clock.Now()
		sub, err := l.store.Latest(ctx, subject.ID(), now)
		if errors.Is(err, domain.ErrNotFound) {
			sub, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		e := entry{sub: sub, fetchedAt: now}
		l.mu.Lock()
		l.cache[key] = e
		l.mu.Unlock()
		return e, nil
	})
	now := l.clock.Now()
	if err != nil {
		e, ok := l.cached(subject)
		l.logger.Warn().Err(err).Str("subject", key).Bool("has_cached", ok).Msg("subscription refresh failed")
		if ok {
			l.mu.Lock()
			e.failed = true
			l.cache[key] = e
			l.mu.Unlock()
		}
		return l.snapshot(subject, e, now, true), fmt.Errorf("%w: subscription lookup: %w", domain.ErrTransientStorage, err)
	}
	return l.snapshot(subject, v.(entry), now, false), nil
}

func (l *Ledger) cached(subject domain.Subject) (entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.cache[subject.Key()]
	return e, ok
}

// snapshot re-derives status from the end date at now.
func (l *Ledger) snapshot(subject domain.Subject, e entry, now time.Time, stale bool) Snapshot {
	s := Snapshot{Subject: subject, Tier: domain.PlanFree, Status: domain.SubscriptionNone, Stale: stale, FetchedAt: e.fetchedAt}
	if e.sub == nil {
		return s
	}
	sub := *e.sub
	s.Subscription = &sub
	s.Status = sub.EffectiveStatus(now)
	s.Tier = sub.EffectiveTier(now)
	return s
}

// CurrentTier returns the tier granted by the cached subscription at this
// instant. Expiry is re-derived on every call.
func (l *Ledger) CurrentTier(subject domain.Subject) domain.PlanTier {
	e, ok := l.cached(subject)
	if !ok || e.sub == nil {
		return domain.PlanFree
	}
	return e.sub.EffectiveTier(l.clock.Now())
}

// IsActive reports whether the cached subscription is active at this instant.
func (l *Ledger) IsActive(subject domain.Subject) bool {
	e, ok := l.cached(subject)
	if !ok || e.sub == nil {
		return false
	}
	return e.sub.IsActive(l.clock.Now()) && e.sub.PlanTier.IsPaid()
}

// Invalidate drops the cached subscription of subject.
func (l *Ledger) Invalidate(subject domain.Subject) {
	l.mu.Lock()
	delete(l.cache, subject.Key())
	l.mu.Unlock()
}

// Activate records a successful payment as a new active subscription. Replaying
// an event with the same payment reference returns the stored subscription and
// created=false.
func (l *Ledger) Activate(ctx context.Context, event domain.ActivationEvent) (*domain.Subscription, bool, error) {
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return nil, false, fmt.Errorf("%w: activation without user id", domain.ErrInvalidSubject)
	}
	if !event.PlanTier.IsPaid() {
		return nil, false, fmt.Errorf("%w: %q cannot be purchased", domain.ErrInvalidTier, event.PlanTier)
	}
	cycle, err := domain.ParseBillingCycle(string(event.BillingCycle))
	if err != nil {
		return nil, false, err
	}
	reference := strings.TrimSpace(event.PaymentReference)
	if reference == "" {
		return nil, false, errors.New("activation without payment reference")
	}

	now := l.clock.Now()
	end := EndDate(now, cycle)
	if event.EndDate.After(now) {
		end = event.EndDate
	}
	sub := domain.Subscription{
		ID:               uuid.NewString(),
		UserID:           userID,
		PlanTier:         event.PlanTier,
		BillingCycle:     cycle,
		Status:           domain.SubscriptionActive,
		StartDate:        now,
		EndDate:          end,
		PaymentReference: reference,
		CreatedAt:        now,
	}
	stored, created, err := l.store.Create(ctx, sub)
	if err != nil {
		return nil, false, fmt.Errorf("%w: create subscription: %w", domain.ErrTransientStorage, err)
	}
	l.Invalidate(domain.Authenticated(userID))

	ev := l.logger.Info()
	if !created {
		ev = l.logger.Warn()
	}
	ev.Str("user_id", userID).
		Str("plan", string(stored.PlanTier)).
		Str("payment_reference", reference).
		Bool("created", created).
		Time("end_date", stored.EndDate).
		Msg("subscription activation")
	return stored, created, nil
}

// Cancel marks a subscription of an authenticated subject as cancelled.
func (l *Ledger) Cancel(ctx context.Context, subject domain.Subject, subscriptionID string) (*domain.Subscription, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if !subject.IsAuthenticated() {
		return nil, fmt.Errorf("%w: guests hold no subscriptions", domain.ErrUnauthorized)
	}
	sub, err := l.store.Cancel(ctx, subject.ID(), strings.TrimSpace(subscriptionID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrSubscriptionCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cancel subscription: %w", domain.ErrTransientStorage, err)
	}
	l.Invalidate(subject)
	l.logger.Info().Str("subject", subject.Key()).Str("subscription_id", sub.ID).Msg("subscription cancelled")
	return sub, nil
}

// EndDate returns the end of a billing period starting at start.
func EndDate(start time.Time, cycle domain.BillingCycle) time.Time {
	if cycle == domain.BillingYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

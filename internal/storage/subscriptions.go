package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plantscan/internal/domain"
)

// SubscriptionMemory is an in-process SubscriptionStore for development and tests.
type SubscriptionMemory struct {
	mu   sync.Mutex
	subs []domain.Subscription
}

func NewSubscriptionMemory() *SubscriptionMemory {
	return &SubscriptionMemory{}
}

func (s *SubscriptionMemory) Latest(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest, latestActive *domain.Subscription
	for i := range s.subs {
		sub := &s.subs[i]
		if sub.UserID != userID {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
		if sub.IsActive(now) && (latestActive == nil || sub.CreatedAt.After(latestActive.CreatedAt)) {
			latestActive = sub
		}
	}
	switch {
	case latestActive != nil:
		out := *latestActive
		return &out, nil
	case latest != nil:
		out := *latest
		return &out, nil
	default:
		return nil, domain.ErrNotFound
	}
}

func (s *SubscriptionMemory) Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.PaymentReference == sub.PaymentReference {
			out := existing
			return &out, false, nil
		}
	}
	s.subs = append(s.subs, sub)
	return &sub, true, nil
}

func (s *SubscriptionMemory) Cancel(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subs {
		sub := &s.subs[i]
		if sub.ID != subscriptionID || sub.UserID != userID {
			continue
		}
		if sub.Status == domain.SubscriptionCancelled {
			return nil, fmt.Errorf("%w: %s", domain.ErrSubscriptionCancelled, subscriptionID)
		}
		sub.Status = domain.SubscriptionCancelled
		out := *sub
		return &out, nil
	}
	return nil, domain.ErrNotFound
}

// MarkExpired flips the stored status of lapsed active subscriptions.
func (s *SubscriptionMemory) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.subs {
		if s.subs[i].Status == domain.SubscriptionActive && !now.Before(s.subs[i].EndDate) {
			s.subs[i].Status = domain.SubscriptionExpired
			n++
		}
	}
	return n, nil
}

var _ domain.SubscriptionStore = (*SubscriptionMemory)(nil)

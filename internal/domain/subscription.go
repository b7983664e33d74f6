package domain

import "time"

// SubscriptionStatus is the stored status of a subscription. It is a cache:
// EffectiveStatus re-derives expiry from EndDate.
type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = ""
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is a purchased entitlement for an authenticated user.
type Subscription struct {
	ID               string
	UserID           string
	PlanTier         PlanTier
	BillingCycle     BillingCycle
	Status           SubscriptionStatus
	StartDate        time.Time
	EndDate          time.Time
	PaymentReference string
	CreatedAt        time.Time
}

// EffectiveStatus returns the status as of now. A subscription whose end date has
// passed is expired regardless of what was stored; cancellation is terminal.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s == nil {
		return SubscriptionNone
	}
	switch s.Status {
	case SubscriptionCancelled:
		return SubscriptionCancelled
	case SubscriptionActive:
		if !now.Before(s.EndDate) {
			return SubscriptionExpired
		}
		return SubscriptionActive
	default:
		return SubscriptionExpired
	}
}

// IsActive reports whether the subscription grants its tier at now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.EffectiveStatus(now) == SubscriptionActive
}

// EffectiveTier is the tier the subscription grants at now, or PlanFree.
func (s *Subscription) EffectiveTier(now time.Time) PlanTier {
	if s.IsActive(now) && s.PlanTier.IsPaid() {
		return s.PlanTier
	}
	return PlanFree
}

// ActivationEvent is emitted by the payment collaborator after a successful purchase.
type ActivationEvent struct {
	UserID           string       `json:"user_id"`
	PlanTier         PlanTier     `json:"plan_tier"`
	BillingCycle     BillingCycle `json:"billing_cycle"`
	PaymentReference string       `json:"payment_reference"`
	EndDate          time.Time    `json:"end_date,omitempty"`
}

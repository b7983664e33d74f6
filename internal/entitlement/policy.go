// Package entitlement decides whether a scan or a garden addition is allowed for a
// plan tier and the subject's counters. Decisions are pure: no I/O, no clock.
package entitlement

import (
	"sync/atomic"

	"plantscan/internal/domain"
)

// Reason explains an Allowance.
type Reason string

const (
	ReasonSubscription       Reason = "subscription"
	ReasonFreeQuota          Reason = "free_quota"
	ReasonFreeExhausted      Reason = "free_exhausted"
	ReasonPaidExhausted      Reason = "subscription_exhausted"
	ReasonUnknownEntitlement Reason = "unknown_entitlement"
)

// Allowance is the scan decision for one subject at one moment.
type Allowance struct {
	Allowed   bool
	Remaining int
	Limit     int
	Reason    Reason
}

// GardenAllowance is the collection capacity decision.
type GardenAllowance struct {
	Allowed   bool
	Remaining int
	Capacity  int
}

// Policy evaluates a Table. The table may be swapped at runtime with Update.
type Policy struct {
	table atomic.Pointer[Table]
}

// NewPolicy validates t and returns a policy over it.
func NewPolicy(t Table) (*Policy, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{}
	p.table.Store(&t)
	return p, nil
}

// Update atomically replaces the tier table after validating it.
func (p *Policy) Update(t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	p.table.Store(&t)
	return nil
}

// Table returns the table currently in force.
func (p *Policy) Table() Table {
	return *p.table.Load()
}

// ResolveScanAllowance decides whether one more scan is allowed.
//
// An active paid subscription is never denied by the daily counter unless the table
// enables strict paid caps; Remaining is reported for display only. Everyone else
// gets the free daily limit plus today's earned bonuses.
func (p *Policy) ResolveScanAllowance(tier domain.PlanTier, status domain.SubscriptionStatus, used, bonus int) Allowance {
	t := p.table.Load()
	if used < 0 {
		used = 0
	}
	if bonus < 0 {
		bonus = 0
	}

	switch status {
	case domain.SubscriptionActive, domain.SubscriptionNone, domain.SubscriptionCancelled, domain.SubscriptionExpired:
	default:
		return Allowance{Reason: ReasonUnknownEntitlement}
	}

	switch tier {
	case domain.PlanBasic, domain.PlanPremium:
		if status == domain.SubscriptionActive {
			limits := t.Tiers[tier]
			remaining := max(0, limits.DailyScans-used)
			if t.StrictPaidCaps && remaining == 0 {
				return Allowance{Remaining: 0, Limit: limits.DailyScans, Reason: ReasonPaidExhausted}
			}
			return Allowance{Allowed: true, Remaining: remaining, Limit: limits.DailyScans, Reason: ReasonSubscription}
		}
		return freeAllowance(t, used, bonus)
	case domain.PlanFree:
		return freeAllowance(t, used, bonus)
	default:
		return Allowance{Reason: ReasonUnknownEntitlement}
	}
}

func freeAllowance(t *Table, used, bonus int) Allowance {
	limit := t.Tiers[domain.PlanFree].DailyScans + bonus
	remaining := max(0, limit-used)
	if remaining == 0 {
		return Allowance{Limit: limit, Reason: ReasonFreeExhausted}
	}
	return Allowance{Allowed: true, Remaining: remaining, Limit: limit, Reason: ReasonFreeQuota}
}

// ResolveGardenCapacity decides whether one more plant fits in the collection.
func (p *Policy) ResolveGardenCapacity(tier domain.PlanTier, currentSize int) GardenAllowance {
	t := p.table.Load()
	switch tier {
	case domain.PlanFree, domain.PlanBasic, domain.PlanPremium:
		capacity := t.Tiers[tier].GardenCapacity
		return GardenAllowance{
			Allowed:   currentSize < capacity,
			Remaining: max(0, capacity-currentSize),
			Capacity:  capacity,
		}
	default:
		return GardenAllowance{}
	}
}

// MaxDailyBonuses returns the rewarded-ad cap per day.
func (p *Policy) MaxDailyBonuses() int {
	return p.table.Load().MaxDailyBonuses
}

// CanEarnBonus reports whether another rewarded ad may be started today.
func (p *Policy) CanEarnBonus(clicksToday int) bool {
	return clicksToday < p.MaxDailyBonuses()
}

// Limits returns the limits of tier.
func (p *Policy) Limits(tier domain.PlanTier) (TierLimits, bool) {
	limits, ok := p.table.Load().Tiers[tier]
	return limits, ok
}

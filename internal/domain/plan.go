package domain

import (
	"fmt"
	"strings"
)

// PlanTier enumerates billing tiers.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanBasic   PlanTier = "basic"
	PlanPremium PlanTier = "premium"
)

// PlanTiers lists every tier in ascending order.
var PlanTiers = []PlanTier{PlanFree, PlanBasic, PlanPremium}

// ParsePlanTier converts user input into a known tier. Unknown values are rejected
// rather than mapped onto a default.
func ParsePlanTier(v string) (PlanTier, error) {
	switch t := PlanTier(strings.ToLower(strings.TrimSpace(v))); t {
	case PlanFree, PlanBasic, PlanPremium:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, v)
	}
}

// IsPaid reports whether the tier is purchased.
func (t PlanTier) IsPaid() bool {
	return t == PlanBasic || t == PlanPremium
}

// BillingCycle enumerates subscription renewal periods.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// ParseBillingCycle validates a billing cycle.
func ParseBillingCycle(v string) (BillingCycle, error) {
	switch c := BillingCycle(strings.ToLower(strings.TrimSpace(v))); c {
	case BillingMonthly, BillingYearly:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported billing cycle %q", v)
	}
}

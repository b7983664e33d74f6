package entitlement

import (
	"encoding/json"
	"fmt"
	"os"

	"plantscan/internal/domain"
)

// TierLimits bounds the resources of one plan tier. A MonthlyScans of zero means
// no monthly figure is published for the tier.
type TierLimits struct {
	DailyScans     int `json:"daily_scans"`
	MonthlyScans   int `json:"monthly_scans"`
	GardenCapacity int `json:"garden_capacity"`
}

// Table is the configurable tier table consulted by Policy.
type Table struct {
	Tiers map[domain.PlanTier]TierLimits `json:"tiers"`
	// MaxDailyBonuses caps rewarded-ad sessions per subject per day.
	MaxDailyBonuses int `json:"max_daily_bonuses"`
	// StrictPaidCaps denies active paid subscriptions at their daily limit.
	StrictPaidCaps bool `json:"strict_paid_caps"`
}

// DefaultTable returns the reference tier table.
func DefaultTable() Table {
	return Table{
		Tiers: map[domain.PlanTier]TierLimits{
			domain.PlanFree:    {DailyScans: 2, GardenCapacity: 3},
			domain.PlanBasic:   {DailyScans: 10, MonthlyScans: 150, GardenCapacity: 5},
			domain.PlanPremium: {DailyScans: 50, MonthlyScans: 600, GardenCapacity: 50},
		},
		MaxDailyBonuses: 2,
	}
}

// Validate checks that every tier is present and every limit is non-negative.
func (t Table) Validate() error {
	for _, tier := range domain.PlanTiers {
		limits, ok := t.Tiers[tier]
		if !ok {
			return fmt.Errorf("%w: tier table missing %q", domain.ErrConfiguration, tier)
		}
		if limits.DailyScans < 0 || limits.MonthlyScans < 0 || limits.GardenCapacity < 0 {
			return fmt.Errorf("%w: tier %q has negative limits", domain.ErrConfiguration, tier)
		}
	}
	for tier := range t.Tiers {
		if _, err := domain.ParsePlanTier(string(tier)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}
	if t.MaxDailyBonuses < 0 {
		return fmt.Errorf("%w: max_daily_bonuses must not be negative", domain.ErrConfiguration)
	}
	return nil
}

// ParseTable decodes and validates a JSON tier table. Tiers missing from the
// document are not filled in from the defaults.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("%w: decode tier table: %w", domain.ErrConfiguration, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadTable reads the tier table at path. An empty path yields DefaultTable.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("%w: read tier table: %w", domain.ErrConfiguration, err)
	}
	return ParseTable(data)
}

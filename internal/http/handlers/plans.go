package handlers

import (
	"net/http"

	"plantscan/internal/domain"
)

type planDTO struct {
	Tier           domain.PlanTier `json:"tier"`
	DailyScans     int             `json:"daily_scans"`
	MonthlyScans   int             `json:"monthly_scans,omitempty"`
	GardenCapacity int             `json:"garden_capacity"`
}

// Plans publishes the tier table so clients can render paywalls from the same
// numbers the gate enforces.
func (a *App) Plans(w http.ResponseWriter, r *http.Request) {
	table := a.Policy.Table()
	plans := make([]planDTO, 0, len(domain.PlanTiers))
	for _, tier := range domain.PlanTiers {
		limits, ok := table.Tiers[tier]
		if !ok {
			continue
		}
		plans = append(plans, planDTO{
			Tier:           tier,
			DailyScans:     limits.DailyScans,
			MonthlyScans:   limits.MonthlyScans,
			GardenCapacity: limits.GardenCapacity,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"plans":             plans,
		"max_daily_bonuses": table.MaxDailyBonuses,
	})
}

package storage

import (
	"time"

	"plantscan/internal/domain"
)

// The single-record stores in this package keep only the latest counter per
// subject; starting a new day replaces it.

func rollover(cur domain.DailyCounter, subject domain.Subject, day string, now time.Time) (domain.DailyCounter, bool) {
	if !cur.IsZero() && cur.DayKey >= day {
		return cur, false
	}
	next := domain.Fresh(subject, day)
	next.UpdatedAt = now
	return next, true
}

func incrementUsed(cur domain.DailyCounter, subject domain.Subject, day string, now time.Time) domain.DailyCounter {
	next, _ := rollover(cur, subject, day, now)
	next.UsedCount++
	next.UpdatedAt = now
	return next
}

// incrementBonus reports whether the record changed (rollover or increment) and
// whether the bonus was applied.
func incrementBonus(cur domain.DailyCounter, subject domain.Subject, day string, maxClicks int, now time.Time) (next domain.DailyCounter, changed, applied bool) {
	next, changed = rollover(cur, subject, day, now)
	if next.ClicksToday >= maxClicks {
		return next, changed, false
	}
	next.BonusCount++
	next.ClicksToday++
	next.UpdatedAt = now
	return next, true, true
}

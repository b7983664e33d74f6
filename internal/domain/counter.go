package domain

import "time"

// DailyCounter holds the scans and rewarded-ad bonuses of one subject on one
// calendar day. A new day is a new record, never a mutation of the previous one.
type DailyCounter struct {
	SubjectKey  string
	DayKey      string
	UsedCount   int
	BonusCount  int
	ClicksToday int
	UpdatedAt   time.Time
}

// IsZero reports whether the counter has never been persisted.
func (c DailyCounter) IsZero() bool {
	return c.DayKey == ""
}

// Fresh returns an empty counter for the given day.
func Fresh(subject Subject, day string) DailyCounter {
	return DailyCounter{SubjectKey: subject.Key(), DayKey: day}
}

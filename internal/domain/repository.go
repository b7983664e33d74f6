package domain

import (
	"context"
	"time"
)

// CounterStore persists DailyCounters keyed by (subject, day). Implementations
// exist for guests (device-local) and authenticated users (remote).
type CounterStore interface {
	// Current returns the most recent counter for the subject, or a zero counter.
	Current(ctx context.Context, subject Subject) (DailyCounter, error)
	// Rollover starts the given day with zero counts unless the stored counter
	// already belongs to that day or a later one. It returns the resulting counter
	// and is idempotent.
	Rollover(ctx context.Context, subject Subject, day string) (DailyCounter, error)
	// IncrementUsed adds one scan to the day's counter, creating it if needed.
	IncrementUsed(ctx context.Context, subject Subject, day string) (DailyCounter, error)
	// IncrementBonus adds one earned bonus and one ad click unless clicksToday has
	// reached maxClicks. applied reports whether the increment happened.
	IncrementBonus(ctx context.Context, subject Subject, day string, maxClicks int) (counter DailyCounter, applied bool, err error)
}

// SubscriptionStore persists subscription records.
type SubscriptionStore interface {
	// Latest returns the most recent active, non-expired subscription of the user,
	// or the most recent record of any status. ErrNotFound when none exists.
	Latest(ctx context.Context, userID string, now time.Time) (*Subscription, error)
	// Create inserts a subscription unless its payment reference already exists.
	// created is false for replays, in which case the stored record is returned.
	Create(ctx context.Context, sub Subscription) (stored *Subscription, created bool, err error)
	// Cancel marks the user's subscription as cancelled.
	Cancel(ctx context.Context, userID, subscriptionID string) (*Subscription, error)
}

// GardenRepository stores garden items for authenticated users.
type GardenRepository interface {
	Count(ctx context.Context, userID string) (int, error)
	List(ctx context.Context, userID string) ([]GardenItem, error)
	// Add stores item unless the user already holds capacity items, in which
	// case it returns ErrGardenFull. The check and the insert are atomic.
	Add(ctx context.Context, item GardenItem, capacity int) (*GardenItem, error)
	Delete(ctx context.Context, userID, itemID string) error
}

// UsageEvent is an audit row describing one identification attempt.
type UsageEvent struct {
	SubjectKey string
	RequestID  string
	EventType  string
	Success    bool
	LatencyMS  int
	Properties map[string]any
}

// UsageRecorder writes audit events.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, event UsageEvent) error
}

// SubscriptionSweeper refreshes the stored status cache of lapsed subscriptions.
type SubscriptionSweeper interface {
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

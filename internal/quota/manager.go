// Package quota tracks how many scans each subject has used today.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
)

const (
	// DefaultRolloverInterval is how often a watched session re-checks the day key.
	DefaultRolloverInterval = 60 * time.Second
	maxCachedSubjects       = 10000
)

// Usage is a subject's counter for its current day.
type Usage struct {
	Subject     domain.Subject
	DayKey      string
	Used        int
	Bonus       int
	ClicksToday int
	// Stale is set when the store was unreachable and the value is the last one
	// this process observed.
	Stale bool
}

// Remaining is the display and decision view of a subject's allowance.
type Remaining struct {
	Usage
	Remaining    int
	Limit        int
	Allowed      bool
	Reason       entitlement.Reason
	CanEarnBonus bool
}

// Options tunes a Manager.
type Options struct {
	RolloverInterval time.Duration
}

// Manager is the only writer of DailyCounters. It is safe for concurrent use.
//
// Two requests for the same subject racing on different replicas may both be
// allowed when one scan remains; no lock spans the read, decide and increment
// steps.
type Manager struct {
	store    domain.CounterStore
	policy   *entitlement.Policy
	clock    clock.Source
	logger   zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	lastSeen map[string]Usage
}

// NewManager wires a Manager over store.
func NewManager(store domain.CounterStore, policy *entitlement.Policy, src clock.Source, logger zerolog.Logger, opts Options) *Manager {
	if opts.RolloverInterval <= 0 {
		opts.RolloverInterval = DefaultRolloverInterval
	}
	return &Manager{
		store:    store,
		policy:   policy,
		clock:    src,
		logger:   logger.With().Str("component", "quota").Logger(),
		interval: opts.RolloverInterval,
		lastSeen: make(map[string]Usage),
	}
}

// Usage returns today's counter for subject, starting a new day when the stored
// counter belongs to an earlier one. Repeated calls within a day return the same
// counts. A stored day later than today (clock moved backwards) is kept.
//
// On storage failure the last observed usage is returned with Stale set, together
// with an error wrapping domain.ErrTransientStorage.
func (m *Manager) Usage(ctx context.Context, subject domain.Subject) (Usage, error) {
	if err := subject.Validate(); err != nil {
		return Usage{}, err
	}
	today := m.clock.DayKey(ctx)

	cur, err := m.store.Current(ctx, subject)
	if err != nil {
		return m.stale(subject), storageError("read counter", err)
	}
	if cur.IsZero() || cur.DayKey < today {
		cur, err = m.store.Rollover(ctx, subject, today)
		if err != nil {
			return m.stale(subject), storageError("rollover counter", err)
		}
		if cur.DayKey < today {
			cur, err = m.afterLostRollover(ctx, subject, today)
			if err != nil {
				return m.stale(subject), err
			}
		}
		m.logger.Debug().Str("subject", subject.Key()).Str("day", cur.DayKey).Msg("quota day started")
	} else if cur.DayKey > today {
		m.logger.Warn().Str("subject", subject.Key()).Str("stored_day", cur.DayKey).Str("today", today).Msg("clock behind stored day; keeping stored counter")
	}
	return m.remember(subject, cur), nil
}

// afterLostRollover handles a Rollover that returned an earlier day, which
// happens when another session created today's row concurrently. Today's row is
// re-read; if it is still not visible the subject starts today at zero.
func (m *Manager) afterLostRollover(ctx context.Context, subject domain.Subject, today string) (domain.DailyCounter, error) {
	cur, err := m.store.Current(ctx, subject)
	if err != nil {
		return domain.DailyCounter{}, storageError("read counter after rollover", err)
	}
	if cur.DayKey >= today {
		return cur, nil
	}
	m.logger.Warn().Str("subject", subject.Key()).Str("stored_day", cur.DayKey).Str("today", today).Msg("rollover returned an earlier day; starting today at zero")
	return domain.Fresh(subject, today), nil
}

// GetRemaining evaluates the allowance of subject for the given entitlement. On
// storage failure Allowed is false and the stale counts are kept for display.
func (m *Manager) GetRemaining(ctx context.Context, subject domain.Subject, tier domain.PlanTier, status domain.SubscriptionStatus) (Remaining, error) {
	usage, err := m.Usage(ctx, subject)
	out := m.Evaluate(usage, tier, status)
	if err != nil {
		out.Allowed = false
		return out, err
	}
	return out, nil
}

// Evaluate applies the policy to an already-read usage.
func (m *Manager) Evaluate(usage Usage, tier domain.PlanTier, status domain.SubscriptionStatus) Remaining {
	allowance := m.policy.ResolveScanAllowance(tier, status, usage.Used, usage.Bonus)
	return Remaining{
		Usage:        usage,
		Remaining:    allowance.Remaining,
		Limit:        allowance.Limit,
		Allowed:      allowance.Allowed,
		Reason:       allowance.Reason,
		CanEarnBonus: m.policy.CanEarnBonus(usage.ClicksToday),
	}
}

// RecordIdentification counts one successful identification. It must be called
// at most once per identification; the Manager does not deduplicate.
func (m *Manager) RecordIdentification(ctx context.Context, subject domain.Subject) (Usage, error) {
	if err := subject.Validate(); err != nil {
		return Usage{}, err
	}
	day, err := m.effectiveDay(ctx, subject)
	if err != nil {
		return Usage{}, err
	}
	cur, err := m.store.IncrementUsed(ctx, subject, day)
	if err != nil {
		return Usage{}, storageError("increment counter", err)
	}
	return m.remember(subject, cur), nil
}

// RecordEarnedBonus adds one bonus scan for a completed rewarded ad. When the
// daily cap is reached nothing changes and applied is false.
func (m *Manager) RecordEarnedBonus(ctx context.Context, subject domain.Subject) (usage Usage, applied bool, err error) {
	if err := subject.Validate(); err != nil {
		return Usage{}, false, err
	}
	day, err := m.effectiveDay(ctx, subject)
	if err != nil {
		return Usage{}, false, err
	}
	cur, applied, err := m.store.IncrementBonus(ctx, subject, day, m.policy.MaxDailyBonuses())
	if err != nil {
		return Usage{}, false, storageError("increment bonus", err)
	}
	if !applied {
		m.logger.Info().Str("subject", subject.Key()).Int("clicks_today", cur.ClicksToday).Msg("bonus cap reached")
	}
	return m.remember(subject, cur), applied, nil
}

// effectiveDay is today, or the stored day when the clock moved backwards.
func (m *Manager) effectiveDay(ctx context.Context, subject domain.Subject) (string, error) {
	today := m.clock.DayKey(ctx)
	cur, err := m.store.Current(ctx, subject)
	if err != nil {
		return "", storageError("read counter", err)
	}
	if cur.DayKey > today {
		return cur.DayKey, nil
	}
	return today, nil
}

func (m *Manager) remember(subject domain.Subject, c domain.DailyCounter) Usage {
	u := Usage{
		Subject:     subject,
		DayKey:      c.DayKey,
		Used:        c.UsedCount,
		Bonus:       c.BonusCount,
		ClicksToday: c.ClicksToday,
	}
	m.mu.Lock()
	if len(m.lastSeen) >= maxCachedSubjects {
		m.lastSeen = make(map[string]Usage)
	}
	m.lastSeen[subject.Key()] = u
	m.mu.Unlock()
	return u
}

func (m *Manager) stale(subject domain.Subject) Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.lastSeen[subject.Key()]
	if !ok {
		return Usage{Subject: subject, Stale: true}
	}
	u.Stale = true
	return u
}

func storageError(op string, err error) error {
	if errors.Is(err, domain.ErrInvalidSubject) || errors.Is(err, domain.ErrConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransientStorage, op, err)
}

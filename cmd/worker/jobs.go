package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
)

type counterPruner interface {
	Prune(ctx context.Context, beforeDay string) (int64, error)
}

// maintenance holds the scheduled jobs. Each run gets its own deadline.
type maintenance struct {
	ctx           context.Context
	logger        zerolog.Logger
	clock         clock.Source
	subscriptions domain.SubscriptionSweeper
	counters      counterPruner
	retentionDays int
}

const jobTimeout = 2 * time.Minute

// sweepExpired keeps the stored subscription status honest for reporting.
// Entitlement reads re-derive expiry from end_date regardless.
func (m *maintenance) sweepExpired() {
	ctx, cancel := context.WithTimeout(m.ctx, jobTimeout)
	defer cancel()
	n, err := m.subscriptions.MarkExpired(ctx, m.clock.Now())
	if err != nil {
		m.logger.Error().Err(err).Msg("subscription expiry sweep failed")
		return
	}
	m.logger.Info().Int64("expired", n).Msg("subscription expiry sweep done")
}

// pruneCounters drops counter rows older than the retention window. Redis
// counters expire on their own.
func (m *maintenance) pruneCounters() {
	if m.counters == nil || m.retentionDays <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(m.ctx, jobTimeout)
	defer cancel()
	now := m.clock.Now()
	before := clock.DayKey(now.AddDate(0, 0, -m.retentionDays), m.clock.Location(ctx))
	n, err := m.counters.Prune(ctx, before)
	if err != nil {
		m.logger.Error().Err(err).Str("before", before).Msg("counter pruning failed")
		return
	}
	m.logger.Info().Int64("deleted", n).Str("before", before).Msg("counter pruning done")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

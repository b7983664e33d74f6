package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/storage"
)

type fakePruner struct {
	before string
	err    error
}

func (f *fakePruner) Prune(_ context.Context, beforeDay string) (int64, error) {
	f.before = beforeDay
	return 4, f.err
}

func TestSweepExpired(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	subs := storage.NewSubscriptionMemory()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := subs.Create(context.Background(), domain.Subscription{
		ID: "s1", UserID: "42", PlanTier: domain.PlanBasic, BillingCycle: domain.BillingMonthly,
		Status: domain.SubscriptionActive, StartDate: start, EndDate: start.AddDate(0, 1, 0), PaymentReference: "p1",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	m := &maintenance{ctx: context.Background(), logger: zerolog.New(&buf), clock: clk, subscriptions: subs}
	m.sweepExpired()
	assert.Contains(t, buf.String(), `"expired":1`)

	latest, err := subs.Latest(context.Background(), "42", clk.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionExpired, latest.Status)
}

func TestPruneCounters(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	pruner := &fakePruner{}
	var buf bytes.Buffer
	m := &maintenance{ctx: context.Background(), logger: zerolog.New(&buf), clock: clk, counters: pruner, retentionDays: 35}
	m.pruneCounters()
	assert.Equal(t, "2025-06-27", pruner.before)
	assert.Contains(t, buf.String(), `"deleted":4`)

	pruner.err = errors.New("db down")
	buf.Reset()
	m.pruneCounters()
	assert.Contains(t, buf.String(), "counter pruning failed")
}

func TestPruneCountersDisabled(t *testing.T) {
	m := &maintenance{ctx: context.Background(), logger: zerolog.Nop(), clock: clock.NewManual(time.Now())}
	m.pruneCounters()

	pruner := &fakePruner{}
	m.counters = pruner
	m.pruneCounters()
	assert.Empty(t, pruner.before)
}

package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
	"plantscan/internal/quota"
	"plantscan/internal/storage"
	"plantscan/internal/subscription"
)

type brokenCounters struct{ domain.CounterStore }

func (brokenCounters) Current(context.Context, domain.Subject) (domain.DailyCounter, error) {
	return domain.DailyCounter{}, errors.New("network unreachable")
}

type fakeIdentifier struct {
	mu     sync.Mutex
	calls  int
	result *domain.Identification
	err    error
	block  bool
}

func (f *fakeIdentifier) Identify(ctx context.Context, _ domain.ImageHandle) (*domain.Identification, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []domain.UsageEvent
}

func (r *recorder) RecordUsage(_ context.Context, ev domain.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type memGarden struct {
	mu    sync.Mutex
	items []domain.GardenItem
}

func (m *memGarden) Count(_ context.Context, userID string) (int, error) {
	items, _ := m.List(context.Background(), userID)
	return len(items), nil
}

func (m *memGarden) List(_ context.Context, userID string) ([]domain.GardenItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.GardenItem
	for _, it := range m.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memGarden) Add(_ context.Context, item domain.GardenItem, capacity int) (*domain.GardenItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := 0
	for _, it := range m.items {
		if it.UserID == item.UserID {
			held++
		}
	}
	if held >= capacity {
		return nil, domain.ErrGardenFull
	}
	item.ID = fmt.Sprintf("item-%d", len(m.items)+1)
	m.items = append(m.items, item)
	return &item, nil
}

func (m *memGarden) Delete(_ context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == itemID && it.UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type harness struct {
	gate     *Gate
	clock    *clock.Manual
	counters domain.CounterStore
	ledger   *subscription.Ledger
	policy   *entitlement.Policy
	audit    *recorder
	garden   *memGarden
}

func newHarness(t *testing.T, table entitlement.Table, counters domain.CounterStore) *harness {
	t.Helper()
	policy, err := entitlement.NewPolicy(table)
	require.NoError(t, err)
	clk := clock.NewManual(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	if counters == nil {
		counters = storage.NewMemoryStore()
	}
	ledger := subscription.NewLedger(storage.NewSubscriptionMemory(), clk, zerolog.Nop(), time.Minute)
	qm := quota.NewManager(counters, policy, clk, zerolog.Nop(), quota.Options{})
	audit := &recorder{}
	garden := &memGarden{}
	g := New(ledger, qm, policy, clk, zerolog.Nop(), Options{
		IdentifyTimeout: 50 * time.Millisecond,
		Usage:           audit,
		Garden:          garden,
	})
	return &harness{gate: g, clock: clk, counters: counters, ledger: ledger, policy: policy, audit: audit, garden: garden}
}

func rose() *domain.Identification {
	return &domain.Identification{
		Provider:    "test",
		IsPlant:     true,
		Suggestions: []domain.Suggestion{{Name: "Rosa canina", Probability: 0.93}},
	}
}

func TestGuestEndToEnd(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	guest := domain.Guest("4b3f2a10-0c1d-4e5f-8a9b-0c1d2e3f4a5b")

	for attempt, wantRemaining := range []int{1, 0} {
		d, err := h.gate.TryIdentify(ctx, guest)
		require.NoError(t, err)
		require.True(t, d.Allowed(), "attempt %d", attempt+1)
		_, counted, err := d.Ticket.Confirm(ctx)
		require.NoError(t, err)
		require.True(t, counted)

		rem, _, err := h.gate.GetRemaining(ctx, guest)
		require.NoError(t, err)
		assert.Equal(t, attempt+1, rem.Used)
		assert.Equal(t, wantRemaining, rem.Remaining)
	}

	d, err := h.gate.TryIdentify(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, KindDeniedFreeExhausted, d.Kind)
	assert.False(t, d.Allowed())
	assert.Equal(t, 0, d.Remaining)
	assert.True(t, d.CanEarnBonus)

	_, applied, err := h.gate.RecordEarnedBonus(ctx, guest)
	require.NoError(t, err)
	require.True(t, applied)
	rem, _, err := h.gate.GetRemaining(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, rem.Remaining)

	d, err = h.gate.TryIdentify(ctx, guest)
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestCanEarnBonusFalseAtCap(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("x")
	for i := 0; i < 4; i++ {
		_, err := h.counters.IncrementUsed(ctx, s, "2025-06-01")
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, _, err := h.gate.RecordEarnedBonus(ctx, s)
		require.NoError(t, err)
	}
	d, err := h.gate.TryIdentify(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, KindDeniedFreeExhausted, d.Kind)
	assert.False(t, d.CanEarnBonus)
}

func TestConfirmCountsOnce(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Authenticated("42")
	d, err := h.gate.TryIdentify(ctx, s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := d.Ticket.Confirm(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	cur, err := h.counters.Current(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.UsedCount)
}

func TestAbandonedTicketConsumesNothing(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("abandon")
	for i := 0; i < 5; i++ {
		d, err := h.gate.TryIdentify(ctx, s)
		require.NoError(t, err)
		require.True(t, d.Allowed())
	}
	cur, err := h.counters.Current(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, cur.UsedCount)
}

func TestActivePaidBypassesCounter(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Authenticated("premium")
	_, _, err := h.ledger.Activate(ctx, domain.ActivationEvent{
		UserID: "premium", PlanTier: domain.PlanPremium, BillingCycle: domain.BillingMonthly, PaymentReference: "p1",
	})
	require.NoError(t, err)
	for i := 0; i < 80; i++ {
		_, err := h.counters.IncrementUsed(ctx, s, "2025-06-01")
		require.NoError(t, err)
	}
	d, err := h.gate.TryIdentify(ctx, s)
	require.NoError(t, err)
	assert.True(t, d.Allowed())
	assert.Equal(t, domain.PlanPremium, d.Tier)
}

func TestStrictPaidCapsDenyUntilMidnight(t *testing.T) {
	table := entitlement.DefaultTable()
	table.StrictPaidCaps = true
	h := newHarness(t, table, nil)
	ctx := context.Background()
	s := domain.Authenticated("basic")
	_, _, err := h.ledger.Activate(ctx, domain.ActivationEvent{
		UserID: "basic", PlanTier: domain.PlanBasic, BillingCycle: domain.BillingMonthly, PaymentReference: "b1",
	})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := h.counters.IncrementUsed(ctx, s, "2025-06-01")
		require.NoError(t, err)
	}
	d, err := h.gate.TryIdentify(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, KindDeniedSubscriptionExhausted, d.Kind)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), d.ResetsAt)
}

func TestCounterFailureDenies(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), brokenCounters{storage.NewMemoryStore()})
	d, err := h.gate.TryIdentify(context.Background(), domain.Authenticated("42"))
	require.ErrorIs(t, err, domain.ErrTransientStorage)
	assert.False(t, d.Allowed())
}

func TestIdentifyCountsUsableResult(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("id")
	out, err := h.gate.Identify(ctx, s, Request{RequestID: "req-1"}, &fakeIdentifier{result: rose()})
	require.NoError(t, err)
	assert.True(t, out.Counted)
	assert.Equal(t, 1, out.Usage.Used)
	assert.Equal(t, "Rosa canina", out.Identification.Suggestions[0].Name)
	assert.Equal(t, []string{"identified"}, h.audit.types())
}

func TestIdentifyRateLimitedConsumesNothing(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("rl")
	provider := &fakeIdentifier{err: fmt.Errorf("plant.id: %w", domain.ErrRateLimited)}

	out, err := h.gate.Identify(ctx, s, Request{}, provider)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, out.Counted)
	assert.NotEqual(t, KindDeniedFreeExhausted, out.Decision.Kind)

	cur, err := h.counters.Current(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, cur.UsedCount)
	assert.Equal(t, []string{"provider_error"}, h.audit.types())
}

func TestIdentifyTimeoutConsumesNothing(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("slow")
	_, err := h.gate.Identify(ctx, s, Request{}, &fakeIdentifier{block: true})
	require.ErrorIs(t, err, domain.ErrIdentificationTimeout)

	out, err := h.gate.Identify(ctx, s, Request{}, &fakeIdentifier{result: rose()})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Usage.Used)
}

func TestIdentifyNoMatchIsNotCounted(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	out, err := h.gate.Identify(context.Background(), domain.Guest("nm"), Request{}, &fakeIdentifier{result: &domain.Identification{}})
	require.NoError(t, err)
	assert.False(t, out.Counted)
	assert.Equal(t, []string{"no_match"}, h.audit.types())
}

func TestIdentifyDeniedSkipsProvider(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Guest("deny")
	for i := 0; i < 2; i++ {
		_, err := h.counters.IncrementUsed(ctx, s, "2025-06-01")
		require.NoError(t, err)
	}
	provider := &fakeIdentifier{result: rose()}
	out, err := h.gate.Identify(ctx, s, Request{}, provider)
	require.NoError(t, err)
	assert.Equal(t, KindDeniedFreeExhausted, out.Decision.Kind)
	assert.Zero(t, provider.calls)
}

func TestGardenCapacityByTier(t *testing.T) {
	h := newHarness(t, entitlement.DefaultTable(), nil)
	ctx := context.Background()
	s := domain.Authenticated("gardener")

	for i := 0; i < 3; i++ {
		_, err := h.gate.AddToGarden(ctx, s, domain.GardenItem{SpeciesName: "Ficus lyrata"})
		require.NoError(t, err)
	}
	_, err := h.gate.AddToGarden(ctx, s, domain.GardenItem{SpeciesName: "Monstera deliciosa"})
	require.ErrorIs(t, err, domain.ErrGardenFull)

	_, _, err = h.ledger.Activate(ctx, domain.ActivationEvent{
		UserID: "gardener", PlanTier: domain.PlanBasic, BillingCycle: domain.BillingMonthly, PaymentReference: "g1",
	})
	require.NoError(t, err)
	allowance, err := h.gate.GardenCapacity(ctx, s, 3)
	require.NoError(t, err)
	assert.True(t, allowance.Allowed)
	assert.Equal(t, 2, allowance.Remaining)

	_, err = h.gate.AddToGarden(ctx, domain.Guest("g"), domain.GardenItem{SpeciesName: "x"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	items, err := h.gate.Garden(ctx, s)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.NoError(t, h.gate.RemoveFromGarden(ctx, s, items[0].ID))
	require.ErrorIs(t, h.gate.RemoveFromGarden(ctx, s, "missing"), domain.ErrNotFound)
}

// lateCountGarden reports an empty garden from Count, as a count read before
// concurrent adds committed would.
type lateCountGarden struct{ *memGarden }

func (lateCountGarden) Count(context.Context, string) (int, error) { return 0, nil }

func TestAddToGardenCapacityHoldsUnderConcurrency(t *testing.T) {
	tests := []struct {
		name   string
		garden func(*memGarden) domain.GardenRepository
	}{
		{name: "count current", garden: func(m *memGarden) domain.GardenRepository { return m }},
		{name: "count stale", garden: func(m *memGarden) domain.GardenRepository { return lateCountGarden{m} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entitlement.DefaultTable(), nil)
			store := &memGarden{}
			g := New(h.ledger, quota.NewManager(h.counters, h.policy, h.clock, zerolog.Nop(), quota.Options{}), h.policy, h.clock, zerolog.Nop(), Options{
				Garden: tt.garden(store),
			})
			s := domain.Authenticated("gardener")

			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := g.AddToGarden(context.Background(), s, domain.GardenItem{SpeciesName: "Ficus lyrata"})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			added := 0
			for err := range errs {
				if err == nil {
					added++
					continue
				}
				require.ErrorIs(t, err, domain.ErrGardenFull)
				assert.NotErrorIs(t, err, domain.ErrTransientStorage)
			}
			assert.Equal(t, 3, added)
			n, err := store.Count(context.Background(), "gardener")
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

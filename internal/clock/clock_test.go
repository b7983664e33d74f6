package clock

import (
	"context"
	"testing"
	"time"
)

func TestDayKeyUsesLocation(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	instant := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)

	if got := DayKey(instant, time.UTC); got != "2025-06-01" {
		t.Fatalf("DayKey(UTC) = %q, want 2025-06-01", got)
	}
	if got := DayKey(instant, lagos); got != "2025-06-02" {
		t.Fatalf("DayKey(Lagos) = %q, want 2025-06-02", got)
	}
}

func TestNextMidnight(t *testing.T) {
	instant := time.Date(2025, 12, 31, 18, 0, 0, 0, time.UTC)
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := NextMidnight(instant, time.UTC); !got.Equal(want) {
		t.Fatalf("NextMidnight() = %v, want %v", got, want)
	}
}

func TestManualDayKeyFollowsContextLocation(t *testing.T) {
	m := NewManual(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if got := m.DayKey(ctx); got != "2025-06-01" {
		t.Fatalf("DayKey() = %q, want 2025-06-01", got)
	}

	plus3 := time.FixedZone("UTC+3", 3*60*60)
	if got := m.DayKey(WithLocation(ctx, plus3)); got != "2025-06-02" {
		t.Fatalf("DayKey(+3) = %q, want 2025-06-02", got)
	}

	m.Advance(3 * time.Hour)
	if got := m.DayKey(ctx); got != "2025-06-02" {
		t.Fatalf("DayKey() after advance = %q, want 2025-06-02", got)
	}
}

func TestLocationFromContextFallback(t *testing.T) {
	if got := LocationFromContext(context.Background(), nil); got != time.UTC {
		t.Fatalf("LocationFromContext() = %v, want UTC", got)
	}
}

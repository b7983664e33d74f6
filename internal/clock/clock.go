// Package clock supplies the current instant and the calendar day key used for
// quota resets.
package clock

import (
	"context"
	"sync"
	"time"
)

// DayLayout formats day keys. Keys sort lexicographically in calendar order.
const DayLayout = "2006-01-02"

// Source supplies the current instant and the subject's current day key.
type Source interface {
	Now() time.Time
	Location(ctx context.Context) *time.Location
	DayKey(ctx context.Context) string
}

type locationKey struct{}

// WithLocation stores the subject's local time zone on the context.
func WithLocation(ctx context.Context, loc *time.Location) context.Context {
	if loc == nil {
		return ctx
	}
	return context.WithValue(ctx, locationKey{}, loc)
}

// LocationFromContext returns the stored time zone or fallback.
func LocationFromContext(ctx context.Context, fallback *time.Location) *time.Location {
	if ctx != nil {
		if loc, ok := ctx.Value(locationKey{}).(*time.Location); ok && loc != nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// DayKey formats t as a day key in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// NextMidnight returns the start of the day after t in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// System reads the wall clock.
type System struct {
	fallback *time.Location
}

// NewSystem returns a wall clock that uses fallback when the context carries no
// time zone.
func NewSystem(fallback *time.Location) *System {
	if fallback == nil {
		fallback = time.UTC
	}
	return &System{fallback: fallback}
}

func (s *System) Now() time.Time { return time.Now() }

func (s *System) Location(ctx context.Context) *time.Location {
	return LocationFromContext(ctx, s.fallback)
}

func (s *System) DayKey(ctx context.Context) string {
	return DayKey(s.Now(), s.Location(ctx))
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu       sync.Mutex
	now      time.Time
	fallback *time.Location
}

// NewManual returns a clock frozen at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now, fallback: now.Location()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Location(ctx context.Context) *time.Location {
	return LocationFromContext(ctx, m.fallback)
}

func (m *Manual) DayKey(ctx context.Context) string {
	return DayKey(m.Now(), m.Location(ctx))
}

var (
	_ Source = (*System)(nil)
	_ Source = (*Manual)(nil)
)

package storage

import (
	"context"
	"sync"
	"time"

	"plantscan/internal/domain"
)

// MemoryStore keeps counters in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]domain.DailyCounter
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]domain.DailyCounter)}
}

func (s *MemoryStore) Current(ctx context.Context, subject domain.Subject) (domain.DailyCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[subject.Key()], nil
}

func (s *MemoryStore) Rollover(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := rollover(s.counters[subject.Key()], subject, day, time.Now())
	if changed {
		s.counters[subject.Key()] = next
	}
	return next, nil
}

func (s *MemoryStore) IncrementUsed(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := incrementUsed(s.counters[subject.Key()], subject, day, time.Now())
	s.counters[subject.Key()] = next
	return next, nil
}

func (s *MemoryStore) IncrementBonus(ctx context.Context, subject domain.Subject, day string, maxClicks int) (domain.DailyCounter, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyCounter{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed, applied := incrementBonus(s.counters[subject.Key()], subject, day, maxClicks, time.Now())
	if changed {
		s.counters[subject.Key()] = next
	}
	return next, applied, nil
}

var _ domain.CounterStore = (*MemoryStore)(nil)

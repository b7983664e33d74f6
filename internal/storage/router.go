package storage

import (
	"context"
	"fmt"

	"plantscan/internal/domain"
)

// SubjectRouter sends guest subjects to the device-local store and authenticated
// subjects to the remote store. Guest counts are never copied into the remote
// store on sign-in.
type SubjectRouter struct {
	Guest  domain.CounterStore
	Remote domain.CounterStore
}

func (r SubjectRouter) pick(subject domain.Subject) (domain.CounterStore, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	var store domain.CounterStore
	switch subject.Kind() {
	case domain.SubjectGuest:
		store = r.Guest
	case domain.SubjectAuthenticated:
		store = r.Remote
	}
	if store == nil {
		return nil, fmt.Errorf("%w: no counter store for %s subjects", domain.ErrConfiguration, subject.Kind())
	}
	return store, nil
}

func (r SubjectRouter) Current(ctx context.Context, subject domain.Subject) (domain.DailyCounter, error) {
	store, err := r.pick(subject)
	if err != nil {
		return domain.DailyCounter{}, err
	}
	return store.Current(ctx, subject)
}

func (r SubjectRouter) Rollover(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	store, err := r.pick(subject)
	if err != nil {
		return domain.DailyCounter{}, err
	}
	return store.Rollover(ctx, subject, day)
}

func (r SubjectRouter) IncrementUsed(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	store, err := r.pick(subject)
	if err != nil {
		return domain.DailyCounter{}, err
	}
	return store.IncrementUsed(ctx, subject, day)
}

func (r SubjectRouter) IncrementBonus(ctx context.Context, subject domain.Subject, day string, maxClicks int) (domain.DailyCounter, bool, error) {
	store, err := r.pick(subject)
	if err != nil {
		return domain.DailyCounter{}, false, err
	}
	return store.IncrementBonus(ctx, subject, day, maxClicks)
}

var _ domain.CounterStore = SubjectRouter{}

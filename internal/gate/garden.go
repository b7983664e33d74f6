package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
)

// GardenCapacity decides whether one more plant fits in the subject's garden.
func (g *Gate) GardenCapacity(ctx context.Context, subject domain.Subject, currentSize int) (entitlement.GardenAllowance, error) {
	snap, err := g.ledger.Refresh(ctx, subject)
	if err != nil && !errors.Is(err, domain.ErrTransientStorage) {
		return entitlement.GardenAllowance{}, err
	}
	return g.policy.ResolveGardenCapacity(snap.Tier, currentSize), nil
}

// AddToGarden stores item for an authenticated subject after checking capacity.
// The repository repeats the capacity check atomically with the insert, so
// concurrent adds cannot overfill the garden.
func (g *Gate) AddToGarden(ctx context.Context, subject domain.Subject, item domain.GardenItem) (*domain.GardenItem, error) {
	if err := g.requireGarden(subject); err != nil {
		return nil, err
	}
	item.SpeciesName = strings.TrimSpace(item.SpeciesName)
	if item.SpeciesName == "" {
		return nil, errors.New("species name is required")
	}
	count, err := g.garden.Count(ctx, subject.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: count garden: %w", domain.ErrTransientStorage, err)
	}
	allowance, err := g.GardenCapacity(ctx, subject, count)
	if err != nil {
		return nil, err
	}
	if !allowance.Allowed {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrGardenFull, count, allowance.Capacity)
	}
	item.UserID = subject.ID()
	stored, err := g.garden.Add(ctx, item, allowance.Capacity)
	if errors.Is(err, domain.ErrGardenFull) {
		return nil, fmt.Errorf("%w: capacity %d", err, allowance.Capacity)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: add garden item: %w", domain.ErrTransientStorage, err)
	}
	return stored, nil
}

// Garden lists the subject's collection.
func (g *Gate) Garden(ctx context.Context, subject domain.Subject) ([]domain.GardenItem, error) {
	if err := g.requireGarden(subject); err != nil {
		return nil, err
	}
	items, err := g.garden.List(ctx, subject.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: list garden: %w", domain.ErrTransientStorage, err)
	}
	return items, nil
}

// RemoveFromGarden deletes one item of the subject's collection.
func (g *Gate) RemoveFromGarden(ctx context.Context, subject domain.Subject, itemID string) error {
	if err := g.requireGarden(subject); err != nil {
		return err
	}
	if err := g.garden.Delete(ctx, subject.ID(), itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete garden item: %w", domain.ErrTransientStorage, err)
	}
	return nil
}

func (g *Gate) requireGarden(subject domain.Subject) error {
	if err := subject.Validate(); err != nil {
		return err
	}
	if !subject.IsAuthenticated() {
		return fmt.Errorf("%w: the server-held garden requires sign-in", domain.ErrUnauthorized)
	}
	if g.garden == nil {
		return fmt.Errorf("%w: no garden repository", domain.ErrConfiguration)
	}
	return nil
}

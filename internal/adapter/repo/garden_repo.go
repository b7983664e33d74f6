package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantscan/internal/domain"
	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

// GardenRepositoryPG implements domain.GardenRepository.
type GardenRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGardenRepository constructs the repository.
func NewGardenRepository(sql infra.SQLExecutor) *GardenRepositoryPG {
	return &GardenRepositoryPG{sql: sql}
}

func (r *GardenRepositoryPG) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountGardenItems, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *GardenRepositoryPG) List(ctx context.Context, userID string) ([]domain.GardenItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGardenItems, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.GardenItem, 0)
	for rows.Next() {
		item, err := scanGardenItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Add inserts item unless the user already holds capacity items, which reports
// ErrGardenFull. A concurrent add that took the same slot leaves this insert
// empty; it is retried once when the count still shows room.
func (r *GardenRepositoryPG) Add(ctx context.Context, item domain.GardenItem, capacity int) (*domain.GardenItem, error) {
	for attempt := 0; ; attempt++ {
		row := r.sql.QueryRow(ctx, sqlinline.QInsertGardenItem, item.UserID, item.SpeciesName, item.Nickname, capacity)
		stored, err := scanGardenItem(row)
		if !errors.Is(err, domain.ErrNotFound) {
			return stored, err
		}
		if attempt > 0 {
			return nil, domain.ErrGardenFull
		}
		count, err := r.Count(ctx, item.UserID)
		if err != nil {
			return nil, err
		}
		if count >= capacity {
			return nil, domain.ErrGardenFull
		}
	}
}

// Delete removes the item. Ids that are not UUIDs cannot exist and report
// ErrNotFound without a round trip.
func (r *GardenRepositoryPG) Delete(ctx context.Context, userID, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteGardenItem, itemID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanGardenItem(row pgx.Row) (*domain.GardenItem, error) {
	var item domain.GardenItem
	if err := row.Scan(&item.ID, &item.UserID, &item.SpeciesName, &item.Nickname, &item.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

var _ domain.GardenRepository = (*GardenRepositoryPG)(nil)

package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"plantscan/internal/domain"
	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

// CounterRepositoryPG implements domain.CounterStore with one row per
// (subject_id, day_key).
type CounterRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCounterRepository constructs the repository.
func NewCounterRepository(sql infra.SQLExecutor) *CounterRepositoryPG {
	return &CounterRepositoryPG{sql: sql}
}

// Current returns the subject's latest row.
func (r *CounterRepositoryPG) Current(ctx context.Context, subject domain.Subject) (domain.DailyCounter, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectLatestCounter, subject.Key())
	return scanCounterOrZero(row)
}

// Rollover inserts the day's row unless the same or a later day already exists.
func (r *CounterRepositoryPG) Rollover(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QRolloverCounter, subject.Key(), day)
	return scanCounterOrZero(row)
}

// IncrementUsed upserts the day's row adding one scan.
func (r *CounterRepositoryPG) IncrementUsed(ctx context.Context, subject domain.Subject, day string) (domain.DailyCounter, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QIncrementUsedCounter, subject.Key(), day)
	return scanCounter(row)
}

// IncrementBonus upserts the day's row adding one bonus unless the click cap is
// reached, in which case the unchanged row is returned.
func (r *CounterRepositoryPG) IncrementBonus(ctx context.Context, subject domain.Subject, day string, maxClicks int) (domain.DailyCounter, bool, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QIncrementBonusCounter, subject.Key(), day, maxClicks)
	counter, err := scanCounter(row)
	if err == nil {
		return counter, true, nil
	}
	if !infra.IsNoRows(err) {
		return domain.DailyCounter{}, false, err
	}
	row = r.sql.QueryRow(ctx, sqlinline.QSelectCounterForDay, subject.Key(), day)
	counter, err = scanCounterOrZero(row)
	if err != nil {
		return domain.DailyCounter{}, false, err
	}
	if counter.IsZero() {
		counter = domain.Fresh(subject, day)
	}
	return counter, false, nil
}

// Prune deletes rows for days before beforeDay.
func (r *CounterRepositoryPG) Prune(ctx context.Context, beforeDay string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteCountersBefore, beforeDay)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCounter(row pgx.Row) (domain.DailyCounter, error) {
	var c domain.DailyCounter
	var updated time.Time
	if err := row.Scan(&c.SubjectKey, &c.DayKey, &c.UsedCount, &c.BonusCount, &c.ClicksToday, &updated); err != nil {
		return domain.DailyCounter{}, err
	}
	c.UpdatedAt = updated
	return c, nil
}

func scanCounterOrZero(row pgx.Row) (domain.DailyCounter, error) {
	c, err := scanCounter(row)
	if infra.IsNoRows(err) {
		return domain.DailyCounter{}, nil
	}
	return c, err
}

var _ domain.CounterStore = (*CounterRepositoryPG)(nil)

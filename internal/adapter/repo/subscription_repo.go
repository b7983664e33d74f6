package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"plantscan/internal/domain"
	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

// SubscriptionRepositoryPG implements domain.SubscriptionStore.
type SubscriptionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSubscriptionRepository constructs the repository.
func NewSubscriptionRepository(sql infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{sql: sql}
}

// Latest returns the newest active, unexpired subscription of the user, else the
// newest of any status.
func (r *SubscriptionRepositoryPG) Latest(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectLatestSubscription, userID, now)
	return scanSubscription(row)
}

// Create inserts sub. A replayed payment reference returns the stored row with
// created=false.
func (r *SubscriptionRepositoryPG) Create(ctx context.Context, sub domain.Subscription) (*domain.Subscription, bool, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSubscription,
		sub.ID,
		sub.UserID,
		string(sub.PlanTier),
		string(sub.BillingCycle),
		string(sub.Status),
		sub.StartDate,
		sub.EndDate,
		sub.PaymentReference,
		sub.CreatedAt,
	)
	stored, err := scanSubscription(row)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	row = r.sql.QueryRow(ctx, sqlinline.QSelectSubscriptionByReference, sub.PaymentReference)
	stored, err = scanSubscription(row)
	if err != nil {
		return nil, false, fmt.Errorf("load replayed subscription: %w", err)
	}
	return stored, false, nil
}

// Cancel sets the terminal cancelled status. Ids that are not UUIDs cannot
// exist and report ErrNotFound without a round trip.
func (r *SubscriptionRepositoryPG) Cancel(ctx context.Context, userID, subscriptionID string) (*domain.Subscription, error) {
	if _, err := uuid.Parse(subscriptionID); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QCancelSubscription, subscriptionID, userID)
	sub, err := scanSubscription(row)
	if !errors.Is(err, domain.ErrNotFound) {
		return sub, err
	}
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectSubscriptionStatus, subscriptionID, userID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrSubscriptionCancelled, subscriptionID)
}

// MarkExpired rewrites the stored status of lapsed active subscriptions.
func (r *SubscriptionRepositoryPG) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkExpiredSubscriptions, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	var tier, cycle, status string
	if err := row.Scan(&s.ID, &s.UserID, &tier, &cycle, &status, &s.StartDate, &s.EndDate, &s.PaymentReference, &s.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.PlanTier = domain.PlanTier(tier)
	s.BillingCycle = domain.BillingCycle(cycle)
	s.Status = domain.SubscriptionStatus(status)
	return &s, nil
}

var (
	_ domain.SubscriptionStore   = (*SubscriptionRepositoryPG)(nil)
	_ domain.SubscriptionSweeper = (*SubscriptionRepositoryPG)(nil)
)

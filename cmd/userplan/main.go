package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantscan/internal/adapter/repo"
	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/infra"
	"plantscan/internal/subscription"
)

func main() {
	var (
		userFlag      string
		planFlag      string
		cycleFlag     string
		referenceFlag string
		endFlag       string
		cancelFlag    string
	)

	flag.StringVar(&userFlag, "user", "", "user ID to grant or cancel")
	flag.StringVar(&planFlag, "plan", "premium", "plan to grant (basic, premium)")
	flag.StringVar(&cycleFlag, "cycle", "monthly", "billing cycle (monthly, yearly)")
	flag.StringVar(&referenceFlag, "reference", "", "payment or support reference; re-running with the same reference is a no-op")
	flag.StringVar(&endFlag, "end", "", "explicit end date (YYYY-MM-DD or RFC3339); defaults to one billing cycle")
	flag.StringVar(&cancelFlag, "cancel", "", "subscription ID to cancel instead of granting")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL"), "userplan")
	runner := infra.NewSQLRunner(pool, logger)
	ledger := subscription.NewLedger(repo.NewSubscriptionRepository(runner), clock.NewSystem(time.UTC), logger, 0)

	if id := strings.TrimSpace(cancelFlag); id != "" {
		sub, err := ledger.Cancel(ctx, domain.Authenticated(userID), id)
		if err != nil {
			exitWithError(fmt.Errorf("failed to cancel subscription: %w", err))
		}
		fmt.Printf("Subscription %s of user %s cancelled (was %s until %s)\n", sub.ID, sub.UserID, sub.PlanTier, sub.EndDate.Format(time.RFC3339))
		return
	}

	tier, err := domain.ParsePlanTier(planFlag)
	if err != nil {
		exitWithError(err)
	}
	if !tier.IsPaid() {
		exitWithError(fmt.Errorf("plan %q cannot be granted; cancel the subscription instead", tier))
	}
	cycle, err := domain.ParseBillingCycle(cycleFlag)
	if err != nil {
		exitWithError(err)
	}
	end, err := parseEnd(endFlag)
	if err != nil {
		exitWithError(err)
	}
	reference := strings.TrimSpace(referenceFlag)
	if reference == "" {
		reference = "manual-" + uuid.NewString()
	}

	sub, created, err := ledger.Activate(ctx, domain.ActivationEvent{
		UserID:           userID,
		PlanTier:         tier,
		BillingCycle:     cycle,
		PaymentReference: reference,
		EndDate:          end,
	})
	if err != nil {
		exitWithError(fmt.Errorf("failed to activate subscription: %w", err))
	}
	if !created {
		fmt.Printf("Reference %s already recorded; existing subscription kept\n", reference)
	}
	fmt.Printf("User %s on plan %s (%s) until %s\n", sub.UserID, sub.PlanTier, sub.BillingCycle, sub.EndDate.Format(time.RFC3339))
	fmt.Printf("subscription_id=%s\n", sub.ID)
	fmt.Printf("payment_reference=%s\n", sub.PaymentReference)
}

func parseEnd(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -end %q: use YYYY-MM-DD or RFC3339", v)
	}
	return t, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

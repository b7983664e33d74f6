package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"plantscan/internal/adapter/repo"
	"plantscan/internal/clock"
	"plantscan/internal/infra"
	"plantscan/internal/sqlinline"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg, "worker", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	w := &maintenance{
		ctx:           ctx,
		logger:        logger,
		clock:         clock.NewSystem(cfg.Location),
		subscriptions: repo.NewSubscriptionRepository(runner),
		retentionDays: cfg.CounterRetentionDays,
	}
	if cfg.CounterBackend == infra.CounterBackendPostgres {
		w.counters = repo.NewCounterRepository(runner)
	}

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	if _, err := c.AddFunc(cfg.ExpirySweepSpec, w.sweepExpired); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.ExpirySweepSpec).Msg("worker: invalid EXPIRY_SWEEP_SPEC")
	}
	if _, err := c.AddFunc("@daily", w.pruneCounters); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to schedule counter pruning")
	}

	// Catch up on whatever lapsed while the worker was down.
	w.sweepExpired()

	c.Start()
	logger.Info().Str("sweep", cfg.ExpirySweepSpec).Int("retention_days", cfg.CounterRetentionDays).Msg("worker started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("worker stopped")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"plantscan/internal/adapter/repo"
	"plantscan/internal/clock"
	"plantscan/internal/domain"
	"plantscan/internal/entitlement"
	"plantscan/internal/gate"
	"plantscan/internal/http/handlers"
	httpapi "plantscan/internal/http/httpapi"
	"plantscan/internal/infra"
	"plantscan/internal/infra/credentials"
	"plantscan/internal/infra/geoip"
	"plantscan/internal/providers/plantid"
	"plantscan/internal/quota"
	"plantscan/internal/sqlinline"
	"plantscan/internal/storage"
	"plantscan/internal/subscription"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg, "api", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	if cfg.AppEnv == "development" {
		if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
	}

	table, err := entitlement.LoadTable(cfg.TierTablePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.TierTablePath).Msg("invalid tier table")
	}
	policy, err := entitlement.NewPolicy(table)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid tier table")
	}
	if cfg.TierTablePath != "" {
		if err := entitlement.WatchTable(ctx, cfg.TierTablePath, policy, logger); err != nil {
			logger.Warn().Err(err).Str("path", cfg.TierTablePath).Msg("tier table hot reload disabled")
		}
	}

	remote, closeRemote := remoteCounters(ctx, cfg, runner, logger)
	defer closeRemote()
	guests, err := storage.NewFileStore(cfg.GuestStorePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.GuestStorePath).Msg("failed to configure guest counter store")
	}
	counters := storage.SubjectRouter{Guest: guests, Remote: remote}

	clk := clock.NewSystem(cfg.Location)
	qm := quota.NewManager(counters, policy, clk, logger, quota.Options{RolloverInterval: cfg.RolloverCheckInterval})
	ledger := subscription.NewLedger(repo.NewSubscriptionRepository(runner), clk, logger, cfg.SubscriptionCacheTTL)
	g := gate.New(ledger, qm, policy, clk, logger, gate.Options{
		IdentifyTimeout: cfg.IdentifyTimeout,
		Usage:           repo.NewUsageRepository(runner),
		Garden:          repo.NewGardenRepository(runner),
	})

	identifier := plantIDClient(ctx, cfg, runner, &logger)

	var resolver geoip.LocationResolver
	if geo, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip disabled; using DEFAULT_TIMEZONE for clients without X-Timezone")
	} else if geo != nil {
		defer geo.Close()
		resolver = geo
	}

	app := &handlers.App{
		Gate:          g,
		Quota:         qm,
		Ledger:        ledger,
		Policy:        policy,
		Identifier:    identifier,
		Clock:         clk,
		Logger:        logger,
		WebhookSecret: cfg.PaymentWebhookSecret,
		MaxImageBytes: cfg.MaxImageBytes,
		Ping:          pool.Ping,
	}
	if cfg.PaymentWebhookSecret == "" {
		logger.Warn().Msg("PAYMENT_WEBHOOK_SECRET not set; payment webhook will reject every event")
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		DefaultLocale:      "en",
		DefaultLocation:    cfg.Location,
		GeoIP:              resolver,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)
	app.Draining = server.Draining()

	logger.Info().Str("counter_backend", cfg.CounterBackend).Str("timezone", cfg.DefaultTimezone).Msg("entitlement core ready")
	if err := server.Run(ctx, logger); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}

// remoteCounters returns the counter store for authenticated users.
func remoteCounters(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger zerolog.Logger) (domain.CounterStore, func()) {
	if cfg.CounterBackend != infra.CounterBackendRedis {
		return repo.NewCounterRepository(runner), func() {}
	}
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	return storage.NewRedisCounterStore(rdb, 0), func() { _ = rdb.Close() }
}

// plantIDClient prefers PLANT_ID_API_KEY and falls back to the key stored with
// cmd/apikey.
func plantIDClient(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger *infra.Logger) *plantid.Client {
	apiKey := strings.TrimSpace(cfg.PlantIDAPIKey)
	source := "env"
	if apiKey == "" {
		cred, ok, err := credentials.NewStore(runner).Get(ctx, credentials.ProviderPlantID)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("failed to load plant.id api key from store")
		case ok:
			apiKey, source = cred.APIKey, "store"
			logger.Info().Str("set_by", cred.SetBy).Time("rotated_at", cred.RotatedAt).Msg("using stored plant.id api key")
		}
	}
	client, err := plantid.NewClient(plantid.Options{
		APIKey:         apiKey,
		BaseURL:        cfg.PlantIDBaseURL,
		Language:       cfg.PlantIDLanguage,
		HTTPClient:     &http.Client{Timeout: cfg.IdentifyTimeout + 5*time.Second},
		Logger:         logger,
		RequestTimeout: cfg.IdentifyTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure plant.id client")
	}
	if !client.HasCredentials() {
		logger.Warn().Msg("plant.id api key missing; identification requests will fail as misconfigured")
	} else {
		logger.Info().Str("source", source).Str("fingerprint", credentials.Fingerprint(apiKey)).Msg("plant.id client configured")
	}
	return client
}

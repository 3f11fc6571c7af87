package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servewell_backend/internal/adapters/storage"
	apphttp "servewell_backend/internal/http"
	"servewell_backend/internal/http/router"
	"servewell_backend/internal/reviews"
	"servewell_backend/internal/reviews/handler"
	"servewell_backend/internal/reviews/repository"
	"servewell_backend/internal/reviews/service"
	"servewell_backend/internal/scheduler"
	"servewell_backend/internal/webhook"
	"servewell_backend/internal/whatsapp"
	"servewell_backend/migrations"
	"servewell_backend/platform/config"
	"servewell_backend/platform/db"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/lock"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"
	"servewell_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

const (
	webhookRate      = rate.Limit(20)
	webhookBurst     = 40
	webhookIdleTTL   = 10 * time.Minute
	shutdownTimeout  = 10 * time.Second
	startupAttempts  = 5
	startupBaseDelay = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	metricsHandler, err := metrics.InitMeterProvider(ctx, "servewell-api")
	if err != nil {
		log.Error("failed to initialize metrics", "error", err)
		panic("failed to initialize metrics: " + err.Error())
	}

	// Voice note links are optional on the API side.
	var audioLinks handler.AudioLinker
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure audio bucket", func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketAudio())
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		audioLinks = storageSvc
		log.Info("storage service initialized", "audioBucket", cfg.GetMinioBucketAudio())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; conversation view omits voice note links")
	}

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = queue.Close() }()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	val := validator.New()
	repo := repository.New(pool)

	// Ingestion seeds the first question in-process; the lock keeps it from
	// racing a sweep running in the scheduler.
	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()
	locker := lock.NewRedisLocker(redisClient, cfg.GetOrderLockTTL())

	initiator := service.NewInitiator(repo, whatsapp.NewClient(cfg, log), locker, log, service.InitiatorConfig{
		Cooldown: cfg.GetReviewCooldown(),
	})

	reviewsModule := reviews.NewModule(repo, initiator, audioLinks, val, cfg.GetPhoneDefaultRegion(), log)
	webhookModule := webhook.NewModule(repo, queue, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:             cfg,
		Logger:             log,
		Health:             pool,
		Metrics:            metricsHandler,
		WebhookRateLimiter: httpkit.NewKeyedRateLimiter(webhookRate, webhookBurst, webhookIdleTTL, log),
		Modules: []apphttp.Module{
			reviewsModule,
			webhookModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, fn func() error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(startupAttempts-1, retry.NewExponential(startupBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(); err != nil {
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

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
	"servewell_backend/internal/analytics"
	"servewell_backend/internal/reviews/agent"
	"servewell_backend/internal/reviews/repository"
	"servewell_backend/internal/reviews/service"
	"servewell_backend/internal/scheduler"
	"servewell_backend/internal/transcription"
	"servewell_backend/internal/whatsapp"
	"servewell_backend/platform/config"
	"servewell_backend/platform/db"
	"servewell_backend/platform/lock"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	startupAttempts  = 5
	startupBaseDelay = 2 * time.Second
	metricsShutdown  = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	metricsHandler, err := metrics.InitMeterProvider(ctx, "servewell-scheduler")
	if err != nil {
		log.Error("failed to initialize metrics", "error", err)
		panic("failed to initialize metrics: " + err.Error())
	}

	// Voice notes are stored before they are transcribed, so the worker cannot
	// run without object storage.
	audioStore, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure audio bucket", func() error {
		return audioStore.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketAudio())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	synthesizer, err := agent.NewQuestionSynthesizer(cfg)
	if err != nil {
		log.Error("failed to initialize question synthesizer", "error", err)
		panic("failed to initialize question synthesizer: " + err.Error())
	}
	analyzer, err := analytics.NewAnalyzer(cfg)
	if err != nil {
		log.Error("failed to initialize sentiment analyzer", "error", err)
		panic("failed to initialize sentiment analyzer: " + err.Error())
	}

	repo := repository.New(pool)
	notifier := whatsapp.NewClient(cfg, log)
	locker := lock.NewRedisLocker(redisClient, cfg.GetOrderLockTTL())

	orchestrator := service.NewOrchestrator(service.Deps{
		Store:       repo,
		Transcriber: transcription.NewClient(cfg),
		Synthesizer: synthesizer,
		Notifier:    notifier,
		AudioStore:  audioStore,
		Locker:      locker,
		Logger:      log,
		Language:    cfg.GetTranscriptionLanguage(),
		StepTimeout: cfg.GetStepTimeout(),
	})
	initiator := service.NewInitiator(repo, notifier, locker, log, service.InitiatorConfig{
		Cooldown: cfg.GetReviewCooldown(),
	})
	sentiment := analytics.NewService(analytics.NewRepository(pool), analyzer, log)

	worker, err := scheduler.NewWorker(cfg, scheduler.Handlers{
		Conversation: orchestrator,
		Reviews:      initiator,
		Sentiment:    sentiment,
	}, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{Addr: cfg.GetMetricsAddr(), Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return periodic.Run(gctx) })
	g.Go(func() error {
		log.Info("metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdown)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
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

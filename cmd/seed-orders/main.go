// Command seed-orders loads companies and orders from a YAML fixture file and
// sends each new order its first feedback question.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/repository"
	"servewell_backend/internal/reviews/service"
	"servewell_backend/internal/scheduler"
	"servewell_backend/internal/whatsapp"
	"servewell_backend/platform/apperr"
	"servewell_backend/platform/config"
	"servewell_backend/platform/db"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/lock"
	"servewell_backend/platform/logger"
)

func main() {
	file := flag.String("file", "fixtures.yaml", "YAML fixture file")
	sweep := flag.Bool("sweep", false, "enqueue a review sweep after loading")
	localLock := flag.Bool("local-lock", false, "use an in-process order lock instead of Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fixtures, err := loadFixtures(*file)
	if err != nil {
		log.Error("failed to load fixtures", "file", *file, "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var locker lock.Locker = lock.NewKeyedMutex()
	if !*localLock {
		redisClient, err := scheduler.NewRedisClient(cfg)
		if err != nil {
			log.Error("failed to initialize redis client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()
		locker = lock.NewRedisLocker(redisClient, cfg.GetOrderLockTTL())
	}

	repo := repository.New(pool)
	initiator := service.NewInitiator(repo, whatsapp.NewClient(cfg, log), locker, log, service.InitiatorConfig{
		Cooldown: cfg.GetReviewCooldown(),
	})

	created, seeded := 0, 0
	for _, cf := range fixtures.Companies {
		company, err := upsertCompany(ctx, repo, cf, log)
		if err != nil {
			log.Error("failed to upsert company", "instanceId", cf.InstanceID, "error", err)
			os.Exit(1)
		}

		for _, of := range cf.Orders {
			order := of.toOrder(cfg.GetPhoneDefaultRegion())
			order.CompanyID = company.ID
			saved, err := repo.CreateOrder(ctx, order)
			if apperr.Is(err, apperr.KindConflict) {
				log.Info("order already exists", "company", company.Name, "number", order.Number)
				continue
			}
			if err != nil {
				log.Error("failed to create order", "number", order.Number, "error", err)
				os.Exit(1)
			}
			created++

			ok, err := initiator.SeedFirstQuestion(ctx, saved.ID)
			if err != nil {
				log.Error("failed to seed first question", "orderId", saved.ID, "error", err)
				continue
			}
			if ok {
				seeded++
			}
		}
	}
	log.Info("fixtures loaded", "companies", len(fixtures.Companies), "ordersCreated", created, "ordersSeeded", seeded)

	if *sweep {
		queue, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task queue client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = queue.Close() }()
		if err := queue.EnqueueReviewSweep(ctx); err != nil {
			log.Error("failed to enqueue review sweep", "error", err)
			os.Exit(1)
		}
		log.Info("review sweep enqueued")
	}
}

// upsertCompany stores the company. A fixture without a webhook token gets a
// fresh one, printed once since only its hash is kept.
func upsertCompany(ctx context.Context, repo *repository.Repository, cf companyFixture, log *logger.Logger) (domain.Company, error) {
	token := cf.WebhookToken
	hash := httpkit.HashToken(token)
	if token == "" {
		var err error
		token, hash, err = httpkit.GenerateToken()
		if err != nil {
			return domain.Company{}, err
		}
		fmt.Printf("%s (%s) webhook token: %s\n", cf.Name, cf.InstanceID, token)
	}

	company, err := repo.UpsertCompany(ctx, domain.Company{
		Name:             cf.Name,
		PhoneNumber:      cf.PhoneNumber,
		InstanceID:       cf.InstanceID,
		APIToken:         cf.APIToken,
		WebhookTokenHash: hash,
	})
	if err != nil {
		return domain.Company{}, err
	}
	log.Info("company ready", "company", company.Name, "instanceId", company.InstanceID)
	return company, nil
}

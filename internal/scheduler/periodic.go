package scheduler

import (
	"context"
	"fmt"
	"time"

	"servewell_backend/platform/config"
	"servewell_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultReviewSweepCron    = "*/30 * * * *"
	defaultSentimentSweepCron = "@every 1h"
	sweepTimeout              = 10 * time.Minute
)

// Periodic enqueues the review and sentiment sweeps on their cron schedules.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// PeriodicEntry is one registered schedule.
type PeriodicEntry struct {
	Spec string
	Task *asynq.Task
}

// Entries returns the schedules Periodic registers for cfg.
func Entries(cfg config.SchedulerConfig) []PeriodicEntry {
	reviewSpec := cfg.GetReviewSweepCron()
	if reviewSpec == "" {
		reviewSpec = defaultReviewSweepCron
	}
	sentimentSpec := cfg.GetSentimentSweepCron()
	if sentimentSpec == "" {
		sentimentSpec = defaultSentimentSweepCron
	}
	return []PeriodicEntry{
		{Spec: reviewSpec, Task: NewStartReviewTask()},
		{Spec: sentimentSpec, Task: NewSentimentSweepTask()},
	}
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Error("periodic enqueue failed", "error", err)
				return
			}
			log.Debug("periodic task enqueued", "type", info.Type, "id", info.ID)
		},
	})

	queue := queueName(cfg)
	for _, entry := range Entries(cfg) {
		// A sweep that is still running makes the next tick a no-op.
		_, err := scheduler.Register(entry.Spec, entry.Task,
			asynq.Queue(queue),
			asynq.MaxRetry(1),
			asynq.Timeout(sweepTimeout),
			asynq.Unique(sweepTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("register %s (%s): %w", entry.Task.Type(), entry.Spec, err)
		}
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run enqueues scheduled tasks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return fmt.Errorf("start periodic scheduler: %w", err)
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}

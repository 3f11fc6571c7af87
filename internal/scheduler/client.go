package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	stepMaxRetry = 5
	stepTimeout  = 3 * time.Minute
	// Task ids stay reserved this long after completion.
	stepRetention = 24 * time.Hour
)

type Client struct {
	client *asynq.Client
	queue  string
}

// StepEnqueuer hands inbound messages to the worker.
type StepEnqueuer interface {
	EnqueueConversationStep(ctx context.Context, ev domain.Event) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueConversationStep queues one inbound message. A message already queued
// under the same id is accepted without a second task.
func (c *Client) EnqueueConversationStep(ctx context.Context, ev domain.Event) error {
	payload, err := StepPayloadFromEvent(ev)
	if err != nil {
		return err
	}
	task, err := NewConversationStepTask(payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(stepMaxRetry),
		asynq.Timeout(stepTimeout),
	}
	if id := stepTaskID(payload); id != "" {
		opts = append(opts, asynq.TaskID(id), asynq.Retention(stepRetention))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueReviewSweep runs the review sweep now instead of waiting for cron.
func (c *Client) EnqueueReviewSweep(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewStartReviewTask(), asynq.Queue(c.queue))
	return err
}

// NewRedisClient opens a go-redis client for the same Redis the queue uses.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfigFor(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfigFor(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfigFor(base *tls.Config, insecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if insecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}

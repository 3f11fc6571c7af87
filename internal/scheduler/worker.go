package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/service"
	"servewell_backend/platform/config"
	"servewell_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ConversationHandler advances a conversation for one inbound message.
type ConversationHandler interface {
	Handle(ctx context.Context, ev domain.Event) (service.Outcome, error)
}

// ReviewSweeper starts and nudges due review conversations.
type ReviewSweeper interface {
	Sweep(ctx context.Context) (service.SweepReport, error)
}

// SentimentSweeper analyses retired conversations and returns how many it stored.
type SentimentSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Handlers are the task processors the worker dispatches to. Nil handlers
// leave their task type unregistered.
type Handlers struct {
	Conversation ConversationHandler
	Reviews      ReviewSweeper
	Sentiment    SentimentSweeper
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	handlers Handlers
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handlers Handlers, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		handlers: handlers,
		log:      log,
	}
	w.register()
	return w, nil
}

func (w *Worker) register() {
	if w.handlers.Conversation != nil {
		w.mux.HandleFunc(TaskConversationStep, w.handleConversationStep)
	}
	if w.handlers.Reviews != nil {
		w.mux.HandleFunc(TaskStartReview, w.handleStartReview)
	}
	if w.handlers.Sentiment != nil {
		w.mux.HandleFunc(TaskSentimentSweep, w.handleSentimentSweep)
	}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func withTaskID(ctx context.Context) context.Context {
	if id, ok := asynq.GetTaskID(ctx); ok {
		return context.WithValue(ctx, logger.TaskIDKey, id)
	}
	return ctx
}

func (w *Worker) handleConversationStep(ctx context.Context, task *asynq.Task) error {
	ctx = withTaskID(ctx)

	payload, err := ParseConversationStepPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	ev, err := payload.Event()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outcome, err := w.handlers.Conversation.Handle(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEvent) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.WithContext(ctx).Info("conversation step processed",
		slog.String("outcome", string(outcome)),
		slog.String("kind", payload.Kind),
		slog.String("message_id", payload.MessageID))
	return nil
}

func (w *Worker) handleStartReview(ctx context.Context, _ *asynq.Task) error {
	_, err := w.handlers.Reviews.Sweep(withTaskID(ctx))
	return err
}

func (w *Worker) handleSentimentSweep(ctx context.Context, _ *asynq.Task) error {
	ctx = withTaskID(ctx)
	stored, err := w.handlers.Sentiment.Sweep(ctx)
	if err != nil {
		return err
	}
	w.log.WithContext(ctx).Info("sentiment sweep finished", slog.Int("analysed", stored))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"
	"servewell_backend/platform/apperr"
	"servewell_backend/platform/lock"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"
)

// Outcome names what a conversation step did.
type Outcome string

const (
	OutcomeDropped      Outcome = "dropped"
	OutcomeReplayed     Outcome = "replayed"
	OutcomeAcknowledged Outcome = "acknowledged"
	OutcomeReprompted   Outcome = "reprompted"
	OutcomeAdvanced     Outcome = "advanced"
	OutcomeClosed       Outcome = "closed"
	OutcomeFinished     Outcome = "finished"
)

// Message kinds for delivery metrics.
const (
	kindQuestion        = "question"
	kindClosing         = "closing"
	kindAcknowledgement = "acknowledgement"
	kindThanks          = "thanks"
)

const defaultStepTimeout = 90 * time.Second

// Deps are the collaborators of the conversation engine.
type Deps struct {
	Store       ports.Store
	Transcriber ports.Transcriber
	Synthesizer ports.Synthesizer
	Notifier    ports.Notifier
	AudioStore  ports.AudioStore
	Locker      lock.Locker
	Logger      *logger.Logger

	// Language hint for transcription, "" lets the transcriber detect it.
	Language string
	// StepTimeout bounds lock acquisition plus the whole step.
	StepTimeout time.Duration
}

// Orchestrator advances one order's conversation per inbound message.
type Orchestrator struct {
	store       ports.Store
	ledger      *Ledger
	recorder    *Recorder
	synth       ports.Synthesizer
	notifier    ports.Notifier
	locker      lock.Locker
	log         *logger.Logger
	stepTimeout time.Duration
}

// NewOrchestrator wires the engine from deps.
func NewOrchestrator(deps Deps) *Orchestrator {
	timeout := deps.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	return &Orchestrator{
		store:       deps.Store,
		ledger:      NewLedger(deps.Store),
		recorder:    NewRecorder(deps.Store, deps.Transcriber, deps.AudioStore, deps.Language, deps.Logger),
		synth:       deps.Synthesizer,
		notifier:    deps.Notifier,
		locker:      deps.Locker,
		log:         deps.Logger,
		stepTimeout: timeout,
	}
}

// Handle processes one inbound message. A returned error means nothing
// customer-visible happened past the last durable write and the step can be
// retried.
func (o *Orchestrator) Handle(ctx context.Context, ev domain.Event) (Outcome, error) {
	start := time.Now()
	outcome, err := o.handle(ctx, ev)

	label := string(outcome)
	if err != nil {
		label = "error"
	}
	metrics.RecordStep(ctx, label, time.Since(start))
	return outcome, err
}

func (o *Orchestrator) handle(ctx context.Context, ev domain.Event) (Outcome, error) {
	switch ev.Payload.(type) {
	case domain.TextEvent, domain.AudioEvent:
	default:
		return OutcomeDropped, fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev.Payload)
	}

	log := o.log.WithContext(ctx)

	company, err := o.store.CompanyByChannel(ctx, ev.ChannelID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Debug("message for unknown channel dropped", slog.String("channel_id", ev.ChannelID))
			return OutcomeDropped, nil
		}
		return "", fmt.Errorf("resolve company for channel %s: %w", ev.ChannelID, err)
	}

	order, err := o.store.FindOpenOrder(ctx, company.ID, ev.SenderPhone)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenOrder) {
			log.Debug("message without open order dropped", slog.String("company_id", company.ID.String()))
			return OutcomeDropped, nil
		}
		return "", fmt.Errorf("resolve open order: %w", err)
	}
	log = log.WithOrder(order.ID.String())

	stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	unlock, err := o.locker.Lock(stepCtx, order.ID.String())
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", order.ID, err)
	}
	defer unlock()

	questions, err := o.ledger.Questions(stepCtx, order.ID)
	if err != nil {
		return "", err
	}

	if answered := domain.AnsweredBy(questions, ev.MessageID); answered != nil {
		if !domain.FollowUpMissing(questions, *answered) {
			log.Info("message already applied", slog.String("message_id", ev.MessageID))
			return OutcomeReplayed, nil
		}
		// The answer landed but the step stopped before a follow-up was appended.
		log.Info("resuming step after recorded answer",
			slog.String("message_id", ev.MessageID), slog.Int("priority", answered.Priority))
		return o.advance(stepCtx, log, company, order, answered.Priority)
	}

	pending := domain.PendingQuestion(questions)
	if pending == nil {
		o.send(stepCtx, log, company, order, domain.AlreadyReceivedMessage, kindAcknowledgement)
		return OutcomeAcknowledged, nil
	}
	current := *pending

	switch p := ev.Payload.(type) {
	case domain.TextEvent:
		err = o.recorder.RecordText(stepCtx, current, p.Text, ev.MessageID)
	case domain.AudioEvent:
		var res AudioResult
		res, err = o.recorder.RecordAudio(stepCtx, order, current, p.Data, p.Mime, ev.MessageID)
		if err == nil {
			log.Info("voice answer recorded",
				slog.String("audio_key", res.AudioKey),
				slog.Bool("transcribed", !res.TranscriptionFailed))
		}
	}
	switch {
	case errors.Is(err, domain.ErrAlreadyAnswered):
		log.Info("question answered concurrently", slog.Int("priority", current.Priority))
		return OutcomeReplayed, nil
	case errors.Is(err, domain.ErrEmptyAnswer):
		o.send(stepCtx, log, company, order, current.Text, kindQuestion)
		return OutcomeReprompted, nil
	case err != nil:
		return "", err
	}

	return o.advance(stepCtx, log, company, order, current.Priority)
}

// advance appends the follow-up to the answered priority and sends whatever
// the customer should see next.
func (o *Orchestrator) advance(ctx context.Context, log *logger.Logger, company domain.Company, order domain.Order, answered int) (Outcome, error) {
	questions, err := o.ledger.Questions(ctx, order.ID)
	if err != nil {
		return "", err
	}
	history := domain.History(questions)
	next := answered + 1

	switch {
	case next == domain.TerminalPriority:
		closing := o.closingMessage(ctx, log, history)
		if closing != "" {
			closed := domain.ClosedAnswer
			_, err := o.ledger.Append(ctx, order.ID, closing, domain.TerminalPriority, &closed)
			switch {
			case err == nil:
				o.send(ctx, log, company, order, closing, kindClosing)
				return OutcomeClosed, nil
			case !errors.Is(err, domain.ErrDuplicatePriority):
				return "", err
			}
		}
	case next < domain.TerminalPriority:
		if text := o.nextQuestion(ctx, log, history, answered); text != "" {
			if _, err := o.ledger.Append(ctx, order.ID, text, next, nil); err != nil && !errors.Is(err, domain.ErrDuplicatePriority) {
				return "", err
			}
		}
	}

	questions, err = o.ledger.Questions(ctx, order.ID)
	if err != nil {
		return "", err
	}
	if p := domain.PendingQuestion(questions); p != nil {
		o.send(ctx, log, company, order, p.Text, kindQuestion)
		return OutcomeAdvanced, nil
	}
	o.send(ctx, log, company, order, domain.ThankYouMessage, kindThanks)
	return OutcomeFinished, nil
}

func (o *Orchestrator) nextQuestion(ctx context.Context, log *logger.Logger, history []domain.Exchange, turn int) string {
	text, err := o.synth.NextQuestion(ctx, history, turn)
	if err != nil {
		log.CollaboratorFailure("synthesizer", fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err))
		metrics.RecordCollaboratorFailure(ctx, "synthesizer")
		return ""
	}
	return text
}

func (o *Orchestrator) closingMessage(ctx context.Context, log *logger.Logger, history []domain.Exchange) string {
	text, err := o.synth.ClosingMessage(ctx, history)
	if err != nil {
		log.CollaboratorFailure("synthesizer", fmt.Errorf("%w: %v", domain.ErrSynthesisFailed, err))
		metrics.RecordCollaboratorFailure(ctx, "synthesizer")
		return ""
	}
	return text
}

func (o *Orchestrator) send(ctx context.Context, log *logger.Logger, company domain.Company, order domain.Order, text, kind string) {
	err := deliver(ctx, o.notifier, company, order, text)
	metrics.RecordMessage(ctx, kind, err == nil)
	if err != nil {
		log.CollaboratorFailure("notifier", err)
		metrics.RecordCollaboratorFailure(ctx, "notifier")
	}
}

func deliver(ctx context.Context, notifier ports.Notifier, company domain.Company, order domain.Order, text string) error {
	if err := notifier.Send(ctx, company.InstanceID, company.APIToken, order.CustomerPhone, text); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"
	"servewell_backend/platform/lock"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCooldown         = 6 * time.Hour
	defaultSweepConcurrency = 4
)

// Sweep actions, also used as metric labels.
const (
	actionSeeded  = "seeded"
	actionResent  = "resent"
	actionSkipped = "skipped"
)

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Companies int
	Seeded    int
	Resent    int
	Skipped   int
}

func (r *SweepReport) add(action string) {
	switch action {
	case actionSeeded:
		r.Seeded++
	case actionResent:
		r.Resent++
	default:
		r.Skipped++
	}
}

// InitiatorConfig tunes the sweep.
type InitiatorConfig struct {
	Cooldown    time.Duration
	Concurrency int
}

// Initiator starts and nudges review conversations for orders past the cooldown.
type Initiator struct {
	store       ports.Store
	ledger      *Ledger
	notifier    ports.Notifier
	locker      lock.Locker
	log         *logger.Logger
	cooldown    time.Duration
	concurrency int
	now         func() time.Time
}

// NewInitiator creates an Initiator.
func NewInitiator(store ports.Store, notifier ports.Notifier, locker lock.Locker, log *logger.Logger, cfg InitiatorConfig) *Initiator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	return &Initiator{
		store:       store,
		ledger:      NewLedger(store),
		notifier:    notifier,
		locker:      locker,
		log:         log,
		cooldown:    cfg.Cooldown,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// Sweep seeds or re-sends the pending question for every due order. A failing
// company does not stop the others; their errors are joined.
func (i *Initiator) Sweep(ctx context.Context) (SweepReport, error) {
	companies, err := i.store.ListCompanies(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list companies: %w", err)
	}
	cutoff := i.now().Add(-i.cooldown)

	var (
		mu     sync.Mutex
		report = SweepReport{Companies: len(companies)}
		errs   []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for _, company := range companies {
		g.Go(func() error {
			part, err := i.sweepCompany(gctx, company, cutoff)
			mu.Lock()
			defer mu.Unlock()
			report.Seeded += part.Seeded
			report.Resent += part.Resent
			report.Skipped += part.Skipped
			if err != nil {
				errs = append(errs, fmt.Errorf("company %s: %w", company.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	i.log.Info("review sweep finished",
		slog.Int("companies", report.Companies),
		slog.Int("seeded", report.Seeded),
		slog.Int("resent", report.Resent),
		slog.Int("skipped", report.Skipped))
	return report, errors.Join(errs...)
}

func (i *Initiator) sweepCompany(ctx context.Context, company domain.Company, cutoff time.Time) (SweepReport, error) {
	var report SweepReport

	snapshot, err := i.store.SweepSnapshot(ctx, company.ID, cutoff)
	if err != nil {
		return report, fmt.Errorf("read sweep snapshot: %w", err)
	}

	for _, target := range SelectSweepTargets(snapshot) {
		action, err := i.promptOrder(ctx, company, target.Order)
		if err != nil {
			i.log.WithOrder(target.Order.ID.String()).Error("review sweep failed for order", slog.String("error", err.Error()))
			return report, err
		}
		report.add(action)
		metrics.RecordSweepOrder(ctx, action)
	}
	return report, nil
}

// SelectSweepTargets keeps, per customer phone, the oldest order that is not
// complete. Orders without a phone are never reviewable.
func SelectSweepTargets(snapshot []domain.OrderWithQuestions) []domain.OrderWithQuestions {
	ordered := make([]domain.OrderWithQuestions, len(snapshot))
	copy(ordered, snapshot)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Order.PlacedAt.Before(ordered[b].Order.PlacedAt)
	})

	seen := make(map[string]struct{}, len(ordered))
	targets := make([]domain.OrderWithQuestions, 0, len(ordered))
	for _, entry := range ordered {
		phone := entry.Order.CustomerPhone
		if phone == "" || domain.IsComplete(entry.Questions) {
			continue
		}
		if _, ok := seen[phone]; ok {
			continue
		}
		seen[phone] = struct{}{}
		targets = append(targets, entry)
	}
	return targets
}

func (i *Initiator) promptOrder(ctx context.Context, company domain.Company, order domain.Order) (string, error) {
	unlock, ok, err := i.locker.TryLock(ctx, order.ID.String())
	if err != nil {
		return "", fmt.Errorf("lock order %s: %w", order.ID, err)
	}
	if !ok {
		return actionSkipped, nil
	}
	defer unlock()

	questions, err := i.ledger.Questions(ctx, order.ID)
	if err != nil {
		return "", err
	}

	action := actionResent
	if len(questions) == 0 {
		seeded, err := i.ledger.Append(ctx, order.ID, domain.SeedQuestion, domain.FirstPriority, nil)
		switch {
		case err == nil:
			questions = []domain.Question{seeded}
			action = actionSeeded
		case errors.Is(err, domain.ErrDuplicatePriority):
			if questions, err = i.ledger.Questions(ctx, order.ID); err != nil {
				return "", err
			}
		default:
			return "", err
		}
	}

	pending := domain.PendingQuestion(questions)
	if pending == nil {
		return actionSkipped, nil
	}

	err = deliver(ctx, i.notifier, company, order, pending.Text)
	metrics.RecordMessage(ctx, kindQuestion, err == nil)
	if err != nil {
		i.log.WithOrder(order.ID.String()).CollaboratorFailure("notifier", err)
		metrics.RecordCollaboratorFailure(ctx, "notifier")
	}
	return action, nil
}

// SeedFirstQuestion puts the opening question on a new order's ledger without
// sending it. It reports whether a question was added.
func (i *Initiator) SeedFirstQuestion(ctx context.Context, orderID uuid.UUID) (bool, error) {
	questions, err := i.ledger.Questions(ctx, orderID)
	if err != nil {
		return false, err
	}
	if len(questions) > 0 {
		return false, nil
	}
	if _, err := i.ledger.Append(ctx, orderID, domain.SeedQuestion, domain.FirstPriority, nil); err != nil {
		if errors.Is(err, domain.ErrDuplicatePriority) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

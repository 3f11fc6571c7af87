package analytics

import (
	"context"
	"errors"
	"sort"
	"testing"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/logger"

	"github.com/google/uuid"
)

type memTranscripts struct {
	pending  []Transcript
	saved    map[uuid.UUID]domain.Analytics
	attempts map[uuid.UUID]int
	listErr  error
}

func newMemTranscripts(pending ...Transcript) *memTranscripts {
	return &memTranscripts{pending: pending, saved: map[uuid.UUID]domain.Analytics{}, attempts: map[uuid.UUID]int{}}
}

func (m *memTranscripts) PendingTranscripts(_ context.Context, limit, maxAttempts int) ([]Transcript, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Transcript
	for _, t := range m.pending {
		if _, done := m.saved[t.OrderID]; done || m.attempts[t.OrderID] >= maxAttempts {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return m.attempts[out[i].OrderID] < m.attempts[out[j].OrderID] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memTranscripts) RecordFailure(_ context.Context, orderID uuid.UUID, _ error) error {
	m.attempts[orderID]++
	return nil
}

func (m *memTranscripts) SaveAnalytics(_ context.Context, a domain.Analytics) (bool, error) {
	if _, ok := m.saved[a.OrderID]; ok {
		return false, nil
	}
	m.saved[a.OrderID] = a
	return true, nil
}

type scriptedAnalyzer struct {
	fail map[string]bool
}

func (s scriptedAnalyzer) Analyze(_ context.Context, conversation string) (Analysis, error) {
	if s.fail[conversation] {
		return Analysis{}, errors.New("groq unavailable")
	}
	return Analysis{Sentiment: "positive", Emotions: []string{"joy"}, Products: []string{"burger"}}, nil
}

func transcript(answer string) Transcript {
	return Transcript{
		OrderID:   uuid.New(),
		Questions: []domain.Question{{Text: domain.SeedQuestion, Priority: 1, Answer: &answer}},
	}
}

func TestSweepStoresAnalyticsAndSkipsFailures(t *testing.T) {
	good := transcript("lovely")
	bad := transcript("boom")
	store := newMemTranscripts(good, bad)
	analyzer := scriptedAnalyzer{fail: map[string]bool{BuildConversation(bad.Questions): true}}
	svc := NewService(store, analyzer, logger.Nop())

	n, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one analytics row, got %d", n)
	}
	if got := store.saved[good.OrderID]; got.Sentiment != "positive" || got.Products[0] != "burger" {
		t.Fatalf("unexpected stored analytics %+v", got)
	}
	if _, ok := store.saved[bad.OrderID]; ok {
		t.Fatalf("expected failed analysis to be skipped")
	}
	if store.attempts[bad.OrderID] != 1 {
		t.Fatalf("expected failed analysis to be counted, got %d", store.attempts[bad.OrderID])
	}

	n, err = svc.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected second sweep to write nothing new, got %d, %v", n, err)
	}
}

func TestSweepReturnsStoreError(t *testing.T) {
	store := newMemTranscripts()
	store.listErr = errors.New("db down")
	svc := NewService(store, scriptedAnalyzer{}, logger.Nop())

	if _, err := svc.Sweep(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestFailingTranscriptsDoNotStarveNewerOnes(t *testing.T) {
	stuck := transcript("no json here")
	fresh := transcript("great")
	store := newMemTranscripts(stuck, fresh)
	analyzer := scriptedAnalyzer{fail: map[string]bool{BuildConversation(stuck.Questions): true}}
	svc := NewService(store, analyzer, logger.Nop())
	svc.batchSize = 1

	for i := 0; i < maxAnalysisAttempts+2; i++ {
		if _, err := svc.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep returned error: %v", err)
		}
	}

	if _, ok := store.saved[fresh.OrderID]; !ok {
		t.Fatalf("expected newer transcript to be analysed despite a failing one")
	}
	if got := store.attempts[stuck.OrderID]; got != maxAnalysisAttempts {
		t.Fatalf("expected failing transcript to stop after %d attempts, got %d", maxAnalysisAttempts, got)
	}
}

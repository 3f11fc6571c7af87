package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/internal/reviews/ports"
	"servewell_backend/platform/apperr"

	"github.com/google/uuid"
)

type memStore struct {
	mu        sync.Mutex
	companies []domain.Company
	orders    []domain.Order
	questions map[uuid.UUID][]domain.Question

	failQuestions error
	// failAppendOnce fails the next AppendQuestion and is then cleared.
	failAppendOnce error
	// beforeAppend runs inside AppendQuestion before the slot is checked.
	beforeAppend func(q ports.NewQuestion)
}

func newMemStore() *memStore {
	return &memStore{questions: make(map[uuid.UUID][]domain.Question)}
}

func (s *memStore) addCompany(instanceID string) domain.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Company{ID: uuid.New(), Name: "Karachi Grill", InstanceID: instanceID, APIToken: "token-" + instanceID}
	s.companies = append(s.companies, c)
	return c
}

func (s *memStore) addOrder(companyID uuid.UUID, phone string, placedAt time.Time) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := domain.Order{ID: uuid.New(), CompanyID: companyID, Number: uuid.NewString()[:8], CustomerPhone: phone, PlacedAt: placedAt}
	s.orders = append(s.orders, o)
	return o
}

func (s *memStore) seed(orderID uuid.UUID, questions ...domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		q.ID = uuid.New()
		q.OrderID = orderID
		s.questions[orderID] = append(s.questions[orderID], q)
	}
}

func (s *memStore) snapshot(orderID uuid.UUID) []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Question(nil), s.questions[orderID]...)
	domain.SortByPriority(out)
	return out
}

func (s *memStore) CompanyByChannel(_ context.Context, instanceID string) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.InstanceID == instanceID {
			return c, nil
		}
	}
	return domain.Company{}, apperr.NotFound("company not found")
}

func (s *memStore) CompanyByID(_ context.Context, id uuid.UUID) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Company{}, apperr.NotFound("company not found")
}

func (s *memStore) ListCompanies(context.Context) ([]domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Company(nil), s.companies...), nil
}

func (s *memStore) FindOpenOrder(_ context.Context, companyID uuid.UUID, phone string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.Order
	for _, o := range s.orders {
		if o.CompanyID == companyID && o.CustomerPhone == phone {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return domain.Order{}, domain.ErrNoOpenOrder
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].PlacedAt.Before(candidates[j].PlacedAt) })

	for _, o := range candidates {
		if domain.PendingQuestion(s.questions[o.ID]) != nil {
			return o, nil
		}
	}
	for _, o := range candidates {
		if !domain.IsComplete(s.questions[o.ID]) {
			return o, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

func (s *memStore) GetOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, apperr.NotFound("order not found")
}

func (s *memStore) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = uuid.New()
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *memStore) QuestionsFor(_ context.Context, orderID uuid.UUID) ([]domain.Question, error) {
	if s.failQuestions != nil {
		return nil, s.failQuestions
	}
	return s.snapshot(orderID), nil
}

func (s *memStore) AppendQuestion(_ context.Context, nq ports.NewQuestion) (domain.Question, error) {
	if s.beforeAppend != nil {
		s.beforeAppend(nq)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failAppendOnce; err != nil {
		s.failAppendOnce = nil
		return domain.Question{}, err
	}
	for _, q := range s.questions[nq.OrderID] {
		if q.Priority == nq.Priority {
			return domain.Question{}, domain.ErrDuplicatePriority
		}
	}
	q := domain.Question{ID: uuid.New(), OrderID: nq.OrderID, Text: nq.Text, Priority: nq.Priority, Answer: nq.Answer}
	s.questions[nq.OrderID] = append(s.questions[nq.OrderID], q)
	return q, nil
}

func (s *memStore) UpdateAnswer(_ context.Context, questionID uuid.UUID, u ports.AnswerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for orderID, qs := range s.questions {
		for i := range qs {
			if qs[i].ID != questionID {
				continue
			}
			if qs[i].IsAnswered() {
				return domain.ErrAlreadyAnswered
			}
			qs[i].Answer = u.Answer
			qs[i].AudioKey = u.AudioKey
			if u.MessageID != "" {
				id := u.MessageID
				qs[i].AnswerMessageID = &id
			}
			s.questions[orderID] = qs
			return nil
		}
	}
	return apperr.NotFound("question not found")
}

func (s *memStore) SweepSnapshot(_ context.Context, companyID uuid.UUID, placedBefore time.Time) ([]domain.OrderWithQuestions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.OrderWithQuestions
	for _, o := range s.orders {
		if o.CompanyID != companyID || !o.PlacedAt.Before(placedBefore) {
			continue
		}
		out = append(out, domain.OrderWithQuestions{Order: o, Questions: append([]domain.Question(nil), s.questions[o.ID]...)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order.PlacedAt.Before(out[j].Order.PlacedAt) })
	return out, nil
}

type sentMessage struct {
	channelID string
	phone     string
	text      string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, channelID, _ string, phone, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{channelID: channelID, phone: phone, text: text})
	return n.err
}

func (n *fakeNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.text)
	}
	return out
}

func (n *fakeNotifier) last() string {
	texts := n.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type synthCall struct {
	history []domain.Exchange
	turn    int
	closing bool
}

type fakeSynth struct {
	mu       sync.Mutex
	calls    []synthCall
	next     func(turn int) (string, error)
	closing  string
	closeErr error
}

func (s *fakeSynth) NextQuestion(_ context.Context, history []domain.Exchange, turn int) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, synthCall{history: history, turn: turn})
	s.mu.Unlock()
	if s.next == nil {
		return "", nil
	}
	return s.next(turn)
}

func (s *fakeSynth) ClosingMessage(_ context.Context, history []domain.Exchange) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, synthCall{history: history, closing: true})
	s.mu.Unlock()
	return s.closing, s.closeErr
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(context.Context, []byte, string, string) (string, error) {
	return t.text, t.err
}

type fakeAudioStore struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
	err     error
}

func (a *fakeAudioStore) PutAudio(_ context.Context, key, _ string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}

func (a *fakeAudioStore) DeleteAudio(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, key)
	return nil
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

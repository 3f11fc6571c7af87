package domain

import "sort"

// State is where an order's conversation stands.
type State int

const (
	StateNoActiveQuestion State = iota
	StateAwaitingAnswer
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateComplete:
		return "complete"
	default:
		return "no_active_question"
	}
}

// SortByPriority orders questions by ascending priority in place.
func SortByPriority(questions []Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Priority < questions[j].Priority
	})
}

// PendingQuestion returns the lowest-priority unanswered question, or nil.
func PendingQuestion(questions []Question) *Question {
	var pending *Question
	for i := range questions {
		q := &questions[i]
		if q.IsAnswered() {
			continue
		}
		if pending == nil || q.Priority < pending.Priority {
			pending = q
		}
	}
	return pending
}

// IsComplete reports whether the order has at least one question and all are answered.
func IsComplete(questions []Question) bool {
	if len(questions) == 0 {
		return false
	}
	for _, q := range questions {
		if !q.IsAnswered() {
			return false
		}
	}
	return true
}

// ConversationState derives the state from the ledger.
func ConversationState(questions []Question) State {
	switch {
	case IsComplete(questions):
		return StateComplete
	case PendingQuestion(questions) != nil:
		return StateAwaitingAnswer
	default:
		return StateNoActiveQuestion
	}
}

// TurnCounter returns the highest answered priority, 0 when nothing is answered.
func TurnCounter(questions []Question) int {
	turn := 0
	for _, q := range questions {
		if q.IsAnswered() && q.Priority > turn {
			turn = q.Priority
		}
	}
	return turn
}

// History returns the answered exchanges in priority order.
func History(questions []Question) []Exchange {
	answered := make([]Question, 0, len(questions))
	for _, q := range questions {
		if q.IsAnswered() {
			answered = append(answered, q)
		}
	}
	SortByPriority(answered)

	history := make([]Exchange, 0, len(answered))
	for _, q := range answered {
		history = append(history, Exchange{Question: q.Text, Answer: q.AnswerText()})
	}
	return history
}

// AnsweredBy returns the question answered by the given chat message, or nil.
func AnsweredBy(questions []Question, messageID string) *Question {
	if messageID == "" {
		return nil
	}
	for i := range questions {
		q := &questions[i]
		if q.AnswerMessageID != nil && *q.AnswerMessageID == messageID {
			return q
		}
	}
	return nil
}

// FollowUpMissing reports whether nothing was appended after the answered
// question q although the ledger still has room for a follow-up.
func FollowUpMissing(questions []Question, q Question) bool {
	if q.Priority >= TerminalPriority {
		return false
	}
	for _, other := range questions {
		if other.Priority > q.Priority {
			return false
		}
	}
	return true
}

// ValidPriority reports whether p fits in the ledger.
func ValidPriority(p int) bool {
	return p >= FirstPriority && p <= TerminalPriority
}

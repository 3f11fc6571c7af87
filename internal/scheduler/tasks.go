package scheduler

import (
	"encoding/json"
	"fmt"

	"servewell_backend/internal/reviews/domain"

	"github.com/hibiken/asynq"
)

const TaskConversationStep = "reviews.conversation_step"

const TaskStartReview = "reviews.start_review"

const TaskSentimentSweep = "analytics.sentiment_sweep"

// ConversationStepPayload is one inbound chat message. Audio is base64 in JSON.
type ConversationStepPayload struct {
	ChannelID   string `json:"channelId"`
	SenderPhone string `json:"senderPhone"`
	MessageID   string `json:"messageId"`
	Kind        string `json:"kind"`
	Text        string `json:"text,omitempty"`
	Audio       []byte `json:"audio,omitempty"`
	Mime        string `json:"mime,omitempty"`
}

// StepPayloadFromEvent flattens an event for the queue.
func StepPayloadFromEvent(ev domain.Event) (ConversationStepPayload, error) {
	payload := ConversationStepPayload{
		ChannelID:   ev.ChannelID,
		SenderPhone: ev.SenderPhone,
		MessageID:   ev.MessageID,
		Kind:        ev.Kind(),
	}
	switch p := ev.Payload.(type) {
	case domain.TextEvent:
		payload.Text = p.Text
	case domain.AudioEvent:
		payload.Audio = p.Data
		payload.Mime = p.Mime
	default:
		return ConversationStepPayload{}, fmt.Errorf("%w: %T", domain.ErrUnknownEvent, ev.Payload)
	}
	return payload, nil
}

// Event rebuilds the domain event.
func (p ConversationStepPayload) Event() (domain.Event, error) {
	ev := domain.Event{
		ChannelID:   p.ChannelID,
		SenderPhone: p.SenderPhone,
		MessageID:   p.MessageID,
	}
	switch p.Kind {
	case "text":
		ev.Payload = domain.TextEvent{Text: p.Text}
	case "audio":
		ev.Payload = domain.AudioEvent{Data: p.Audio, Mime: p.Mime}
	default:
		return domain.Event{}, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, p.Kind)
	}
	return ev, nil
}

func NewConversationStepTask(payload ConversationStepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversationStep, data), nil
}

func ParseConversationStepPayload(task *asynq.Task) (ConversationStepPayload, error) {
	var payload ConversationStepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConversationStepPayload{}, err
	}
	return payload, nil
}

func NewStartReviewTask() *asynq.Task {
	return asynq.NewTask(TaskStartReview, nil)
}

func NewSentimentSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSentimentSweep, nil)
}

// stepTaskID dedupes queue-level redelivery of the same chat message.
func stepTaskID(p ConversationStepPayload) string {
	if p.MessageID == "" {
		return ""
	}
	return "step:" + p.ChannelID + ":" + p.MessageID
}

// Package agent writes the follow-up and closing messages of a feedback
// conversation with an LLM.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/ai/groq"
	"servewell_backend/platform/ai/textagent"
	"servewell_backend/platform/bounded"
	"servewell_backend/platform/config"
)

const (
	appName           = "review-question-synthesizer"
	questionTemp      = 0.3
	contentTurns      = domain.TerminalPriority - 1
	maxQuestionTokens = 200
)

// Generator is the text generation the synthesizer relies on.
type Generator interface {
	Generate(ctx context.Context, userID, prompt string) (string, error)
}

// QuestionSynthesizer implements ports.Synthesizer.
type QuestionSynthesizer struct {
	gen     Generator
	timeout time.Duration
}

// NewQuestionSynthesizer builds the ADK agent over the Groq model.
func NewQuestionSynthesizer(cfg config.LLMConfig) (*QuestionSynthesizer, error) {
	llm := groq.NewModel(groq.Config{
		APIKey:      cfg.GetGroqAPIKey(),
		BaseURL:     cfg.GetGroqBaseURL(),
		Model:       cfg.GetGroqModel(),
		Temperature: questionTemp,
		MaxTokens:   maxQuestionTokens,
	})

	a, err := textagent.New(textagent.Config{
		AppName:     appName,
		Name:        "QuestionSynthesizer",
		Description: "Writes short follow-up questions and closing notes for restaurant feedback chats.",
		Instruction: systemPrompt,
		Model:       llm,
	})
	if err != nil {
		return nil, err
	}
	return NewWithGenerator(a, cfg.GetCollaboratorTimeout()), nil
}

// NewWithGenerator wraps an existing generator.
func NewWithGenerator(gen Generator, timeout time.Duration) *QuestionSynthesizer {
	return &QuestionSynthesizer{gen: gen, timeout: timeout}
}

// NextQuestion acknowledges the latest answer and asks one follow-up. turn is
// the number of answered content questions.
func (s *QuestionSynthesizer) NextQuestion(ctx context.Context, history []domain.Exchange, turn int) (string, error) {
	if turn >= contentTurns {
		return s.ClosingMessage(ctx, history)
	}
	return s.generate(ctx, buildQuestionPrompt(history, turn))
}

// ClosingMessage wraps the conversation up without asking anything further.
func (s *QuestionSynthesizer) ClosingMessage(ctx context.Context, history []domain.Exchange) (string, error) {
	return s.generate(ctx, buildClosingPrompt(history))
}

func (s *QuestionSynthesizer) generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := bounded.Call(ctx, s.timeout, func(ctx context.Context) error {
		var err error
		out, err = s.gen.Generate(ctx, "review-conversation", prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("synthesize message: %w", err)
	}
	return cleanReply(out), nil
}

const systemPrompt = `You're a polite assistant collecting customer feedback for a restaurant over WhatsApp.
Keep every reply short, warm and natural, never robotic.
Do not repeat stock phrases such as "didn't meet expectations" or "sorry to hear" in every reply.
Reply with the message text only.`

func buildQuestionPrompt(history []domain.Exchange, turn int) string {
	return fmt.Sprintf(`Acknowledge the customer's latest feedback and ask ONE polite, helpful follow-up question.

Example (tone):
User: The fries were cold.
Assistant: Thanks for letting us know! Was it just the fries, or was the rest of your meal okay?

Conversation so far:
%s
(Turn %d/%d)

Your reply:`, formatHistory(history), turn, contentTurns)
}

func buildClosingPrompt(history []domain.Exchange) string {
	return fmt.Sprintf(`Wrap the conversation up based on its overall tone. Do not ask any more questions.
- If the feedback was mostly negative or mixed: say we'll work on it, hope the next visit is better, and offer 15%% off.
- If the feedback was mostly positive: thank them and invite them to leave a 5-star Google review.

Conversation so far:
%s
(Turn %d/%d)

Your reply:`, formatHistory(history), contentTurns, contentTurns)
}

func formatHistory(history []domain.Exchange) string {
	var b strings.Builder
	for _, ex := range history {
		answer := strings.TrimSpace(ex.Answer)
		if answer == "" {
			answer = "(voice note)"
		}
		fmt.Fprintf(&b, "Assistant: %s\nUser: %s\n", strings.TrimSpace(ex.Question), answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// cleanReply drops role labels and wrapping quotes the model sometimes adds.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"Assistant:", "assistant:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/ai/groq"
	"servewell_backend/platform/ai/textagent"
	"servewell_backend/platform/bounded"
	"servewell_backend/platform/config"
)

const (
	appName       = "review-sentiment-analyzer"
	analysisTemp  = 0.1
	analysisUser  = "sentiment-sweep"
	sentimentNone = "neutral"
)

// ErrNoJSON is returned when the model reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON in analysis reply")

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

var (
	positiveEmotions = map[string]struct{}{"satisfaction": {}, "joy": {}, "relief": {}, "gratitude": {}}
	negativeEmotions = map[string]struct{}{"disappointment": {}, "frustration": {}, "anger": {}, "sadness": {}}
)

// Generator is the text generation the analyzer relies on.
type Generator interface {
	Generate(ctx context.Context, userID, prompt string) (string, error)
}

// Analysis is what the model extracts from one conversation.
type Analysis struct {
	Sentiment string   `json:"sentiment"`
	Products  []string `json:"product_name"`
	Emotions  []string `json:"emotions"`
	Keywords  []string `json:"keywords"`
}

// Analyzer asks the LLM for a structured sentiment summary.
type Analyzer struct {
	gen     Generator
	timeout time.Duration
}

// NewAnalyzer builds the ADK agent over the Groq model.
func NewAnalyzer(cfg config.LLMConfig) (*Analyzer, error) {
	llm := groq.NewModel(groq.Config{
		APIKey:      cfg.GetGroqAPIKey(),
		BaseURL:     cfg.GetGroqBaseURL(),
		Model:       cfg.GetGroqModel(),
		Temperature: analysisTemp,
	})
	a, err := textagent.New(textagent.Config{
		AppName:     appName,
		Name:        "SentimentAnalyzer",
		Description: "Extracts sentiment, products, emotions and keywords from food feedback chats.",
		Instruction: "You analyze restaurant feedback conversations and answer with JSON only.",
		Model:       llm,
	})
	if err != nil {
		return nil, err
	}
	return NewAnalyzerWithGenerator(a, cfg.GetCollaboratorTimeout()), nil
}

func NewAnalyzerWithGenerator(gen Generator, timeout time.Duration) *Analyzer {
	return &Analyzer{gen: gen, timeout: timeout}
}

// Analyze returns the refined analysis of a conversation transcript.
func (a *Analyzer) Analyze(ctx context.Context, conversation string) (Analysis, error) {
	var reply string
	err := bounded.Call(ctx, a.timeout, func(ctx context.Context) error {
		var err error
		reply, err = a.gen.Generate(ctx, analysisUser, buildAnalysisPrompt(conversation))
		return err
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze conversation: %w", err)
	}
	return ParseAnalysis(reply)
}

// ParseAnalysis pulls the JSON object out of a model reply and refines its
// sentiment from the detected emotions.
func ParseAnalysis(reply string) (Analysis, error) {
	raw := jsonObject.FindString(reply)
	if raw == "" {
		return Analysis{}, ErrNoJSON
	}
	var out Analysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	out.Sentiment = RefineSentiment(out.Sentiment, out.Emotions)
	return out, nil
}

// RefineSentiment overrides the model's label when the emotions say otherwise.
func RefineSentiment(original string, emotions []string) string {
	var pos, neg bool
	for _, e := range emotions {
		e = strings.ToLower(strings.TrimSpace(e))
		if _, ok := positiveEmotions[e]; ok {
			pos = true
		}
		if _, ok := negativeEmotions[e]; ok {
			neg = true
		}
	}
	switch {
	case pos && neg:
		return "mixed"
	case pos:
		return "positive"
	case neg:
		return "negative"
	}
	if original = strings.TrimSpace(original); original != "" {
		return original
	}
	return sentimentNone
}

// BuildConversation renders a ledger as the transcript the analyzer reads.
func BuildConversation(questions []domain.Question) string {
	var b strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&b, "Agent: %s\nCustomer: %s\n\n", q.Text, q.AnswerText())
	}
	return b.String()
}

func buildAnalysisPrompt(conversation string) string {
	return fmt.Sprintf(`Analyze the following multi-turn customer service conversation related to food:

"""
%s
"""

Return a valid JSON with this structure:
{
    "sentiment": "[positive/negative/neutral]",
    "product_name": ["product1", "product2"],
    "emotions": ["emotion1", "emotion2"],
    "keywords": ["keyword1", "keyword2"]
}

Do not add any explanations or formatting outside the JSON.`, conversation)
}

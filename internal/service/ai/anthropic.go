package ai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/veriscreen/screening-backend/internal/domain/investigation"
	"github.com/veriscreen/screening-backend/internal/domain/values"
)

const classifySystemPrompt = `You classify background-check findings for an employee risk platform.
Respond with a single JSON object and nothing else:
{"category":"criminal|financial|regulatory|reputation|verification|behavioral|network","sub_category":"<short_snake_case>","severity":"low|medium|high|critical","confidence":0.0-1.0,"rationale":"<one sentence>"}`

// AnthropicClassifier asks a Claude model to propose finding classifications.
type AnthropicClassifier struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *zap.Logger
}

func NewAnthropicClassifier(apiKey, model string, logger *zap.Logger) *AnthropicClassifier {
	return &AnthropicClassifier{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: 256,
		logger:    logger,
	}
}

func (c *AnthropicClassifier) SuggestClassification(ctx context.Context, summary, details string) (*Suggestion, error) {
	prompt := "Finding summary: " + summary
	if details != "" {
		prompt += "\nDetails: " + details
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: classifySystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.logger.Warn("model classification unavailable", zap.Error(err))
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseSuggestion(text.String())
}

func parseSuggestion(raw string) (*Suggestion, error) {
	// Models occasionally wrap JSON in a code fence; take the outermost braces.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, nil
	}

	var wire struct {
		Category    string  `json:"category"`
		SubCategory string  `json:"sub_category"`
		Severity    string  `json:"severity"`
		Confidence  float64 `json:"confidence"`
		Rationale   string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return nil, err
	}

	sev, err := values.ParseSeverity(wire.Severity)
	if err != nil {
		sev = values.SeverityMedium
	}
	return &Suggestion{
		Category:    investigation.Category(strings.ToLower(wire.Category)),
		SubCategory: wire.SubCategory,
		Severity:    sev,
		Confidence:  wire.Confidence,
		Rationale:   wire.Rationale,
	}, nil
}

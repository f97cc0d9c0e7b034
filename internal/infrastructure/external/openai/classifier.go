package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
)

// Classifier implements port.IntelligenceService using OpenAI. An API or
// parse failure is returned as an error and means the model is unavailable;
// the caller decides whether to fall back. Low confidence is expressed
// through scores only.
type Classifier struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	logger         *zap.Logger
}

// NewClassifier creates a new OpenAI-backed classifier
func NewClassifier(apiKey, model, embeddingModel string, temperature float32, logger *zap.Logger) *Classifier {
	return &Classifier{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		logger:         logger,
	}
}

// Classify scores the text against the given labels, one score per label
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) ([]port.LabelScore, error) {
	c.logger.Debug("Classifying text",
		zap.Int("text_len", len(text)),
		zap.Int("labels", len(labels)))

	prompt := buildClassifyPrompt(text, labels)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a municipal complaint triage assistant. Score how well each label describes the complaint, from 0.0 to 1.0. Always respond with a single JSON object mapping every given label to its score.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var scores map[string]float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		// Fallback: try to extract JSON from markdown code blocks
		if jsonStr := extractJSON(content); jsonStr != "" {
			err = json.Unmarshal([]byte(jsonStr), &scores)
		}
		if err != nil {
			c.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	// Every requested label gets a score; labels the model skipped get zero.
	result := make([]port.LabelScore, 0, len(labels))
	for _, label := range labels {
		result = append(result, port.LabelScore{Label: label, Score: scores[label]})
	}
	return result, nil
}

// Embed returns a sentence embedding for the given text
func (c *Classifier) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	if err != nil {
		c.logger.Error("OpenAI embedding call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

// ModelVersion identifies the scoring model for drift detection
func (c *Classifier) ModelVersion() string {
	return c.model
}

func buildClassifyPrompt(text string, labels []string) string {
	var b strings.Builder
	b.WriteString("Complaint text:\n")
	b.WriteString(text)
	b.WriteString("\n\nLabels to score:\n")
	for _, label := range labels {
		b.WriteString("- ")
		b.WriteString(label)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with JSON: {\"<label>\": <score>, ...} covering every label.")
	return b.String()
}

// extractJSON extracts a JSON payload from a markdown code block
func extractJSON(content string) string {
	start := strings.Index(content, "```json")
	if start == -1 {
		start = strings.Index(content, "```")
		if start == -1 {
			return ""
		}
		start += 3
	} else {
		start += 7
	}
	end := strings.Index(content[start:], "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(content[start : start+end])
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"go.uber.org/zap"
)

// ClassificationResult is the typed result constructed at the model boundary.
// Downstream code never handles raw score maps.
type ClassificationResult struct {
	Category           string
	CategoryConfidence float64
	Severity           string
	SeverityConfidence float64
	ModelVersion       string
}

// Classifier produces category and severity labels for report text. It scores
// against the fixed label sets via the intelligence service; the rule-based
// keyword fallback runs only when the model is unavailable and is never
// blended with model output.
type Classifier struct {
	intelligence port.IntelligenceService
	fallback     *KeywordClassifier
	logger       *zap.Logger
}

// NewClassifier creates a classifier backed by the given intelligence service
func NewClassifier(intelligence port.IntelligenceService, logger *zap.Logger) *Classifier {
	return &Classifier{
		intelligence: intelligence,
		fallback:     NewKeywordClassifier(),
		logger:       logger,
	}
}

// Classify scores the text against the category and severity label sets.
// Model unavailability triggers the keyword fallback; any other outcome is
// returned as-is, including low-confidence ones.
func (c *Classifier) Classify(ctx context.Context, text string) (*ClassificationResult, error) {
	category, catConf, err := c.scoreBest(ctx, text, entity.Categories)
	if err != nil {
		c.logger.Warn("Classification model unavailable, using keyword fallback",
			zap.Error(err))
		return c.fallback.Classify(text), nil
	}

	severity, sevConf, err := c.scoreBest(ctx, text, entity.Severities)
	if err != nil {
		c.logger.Warn("Severity scoring unavailable, using keyword fallback",
			zap.Error(err))
		return c.fallback.Classify(text), nil
	}

	return &ClassificationResult{
		Category:           category,
		CategoryConfidence: catConf,
		Severity:           severity,
		SeverityConfidence: sevConf,
		ModelVersion:       c.intelligence.ModelVersion(),
	}, nil
}

// scoreBest returns the top-scoring label from the set
func (c *Classifier) scoreBest(ctx context.Context, text string, labels []string) (string, float64, error) {
	scores, err := c.intelligence.Classify(ctx, text, labels)
	if err != nil {
		return "", 0, err
	}
	if len(scores) == 0 {
		return "", 0, fmt.Errorf("model returned no scores")
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best.Label, clamp01(best.Score), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

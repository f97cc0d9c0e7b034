package pipeline

import (
	"strings"

	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
)

// fallbackModelVersion marks results produced without the model so drift
// detection can tell them apart from real model output.
const fallbackModelVersion = "keyword-fallback-v1"

// KeywordClassifier is the rule-based fallback used only when the
// classification model is unavailable.
type KeywordClassifier struct {
	categoryKeywords map[string][]string
	severityKeywords map[string][]string
}

// NewKeywordClassifier creates the fallback classifier with its fixed rules
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		categoryKeywords: map[string][]string{
			entity.CategoryRoads:          {"pothole", "road", "asphalt", "crack", "speed breaker", "tarmac", "highway"},
			entity.CategoryWater:          {"water", "pipeline", "leak", "supply", "tap", "burst pipe", "contaminated"},
			entity.CategorySanitation:     {"garbage", "trash", "waste", "dump", "litter", "smell", "sewage overflow"},
			entity.CategoryElectricity:    {"power", "electric", "transformer", "outage", "voltage", "wire", "shock"},
			entity.CategoryStreetlight:    {"streetlight", "street light", "lamp", "bulb", "dark street", "pole light"},
			entity.CategoryDrainage:       {"drain", "drainage", "flood", "waterlogging", "clogged", "gutter", "manhole"},
			entity.CategoryPublicProperty: {"park", "bench", "vandalism", "wall", "playground", "bus stop", "signboard"},
		},
		severityKeywords: map[string][]string{
			entity.SeverityCritical: {"danger", "accident", "injured", "death", "collapse", "fire", "emergency"},
			entity.SeverityHigh:     {"urgent", "severe", "major", "overflowing", "blocked completely", "broken down"},
			entity.SeverityLow:      {"minor", "small", "slight", "cosmetic"},
		},
	}
}

// Classify matches keywords against the text. Confidence reflects match
// strength, capped below the classification floor so fallback results
// always land in manual review.
func (k *KeywordClassifier) Classify(text string) *ClassificationResult {
	lower := strings.ToLower(text)

	category := entity.CategoryOther
	catHits := 0
	for cat, words := range k.categoryKeywords {
		hits := countHits(lower, words)
		if hits > catHits {
			category, catHits = cat, hits
		}
	}

	severity := entity.SeverityMedium
	sevHits := 0
	for sev, words := range k.severityKeywords {
		hits := countHits(lower, words)
		if hits > sevHits {
			severity, sevHits = sev, hits
		}
	}

	result := &ClassificationResult{
		Category:           category,
		CategoryConfidence: fallbackConfidence(catHits),
		Severity:           severity,
		SeverityConfidence: fallbackConfidence(sevHits),
		ModelVersion:       fallbackModelVersion,
	}
	return result
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return hits
}

// fallbackConfidence maps hit counts to scores that never clear the default
// classification floor, so fallback results always stop in manual review.
func fallbackConfidence(hits int) float64 {
	switch {
	case hits == 0:
		return 0.10
	case hits == 1:
		return 0.25
	default:
		return 0.35
	}
}

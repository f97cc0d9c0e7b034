package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"go.uber.org/zap"
)

// Routing stage identifiers, recorded so operators can see which stage
// produced a routing decision.
const (
	RouteStageExact   = "exact"
	RouteStageKeyword = "keyword"
	RouteStageLearned = "learned"
)

// RouterConfig holds department-routing tuning
type RouterConfig struct {
	// ExactMatchConfidence is assigned when the category maps directly to a
	// department.
	ExactMatchConfidence float64

	// EnableLearnedMatcher turns on the model-backed third stage.
	EnableLearnedMatcher bool
}

// DefaultRouterConfig returns the observed production defaults
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		ExactMatchConfidence: 0.90,
		EnableLearnedMatcher: false,
	}
}

// RoutingResult is a candidate department with the confidence of whichever
// stage produced it
type RoutingResult struct {
	DepartmentID int64
	Confidence   float64
	Stage        string
}

// DepartmentRouter maps a classified report to a candidate department using
// multi-stage matching: exact category mapping, then keyword overlap against
// department profiles, then an optional learned matcher.
type DepartmentRouter struct {
	config       RouterConfig
	departments  port.DepartmentRepository
	intelligence port.IntelligenceService
	logger       *zap.Logger
}

// NewDepartmentRouter creates a department router
func NewDepartmentRouter(
	config RouterConfig,
	departments port.DepartmentRepository,
	intelligence port.IntelligenceService,
	logger *zap.Logger,
) *DepartmentRouter {
	return &DepartmentRouter{
		config:       config,
		departments:  departments,
		intelligence: intelligence,
		logger:       logger,
	}
}

// Route returns the best candidate department for the report, or nil when no
// stage produced a match. Store failures are transient.
func (r *DepartmentRouter) Route(ctx context.Context, report *entity.Report) (*RoutingResult, error) {
	category := report.EffectiveCategory()

	// Stage 1: exact category mapping
	dept, err := r.departments.GetByCategory(ctx, category)
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		return nil, Transient("routing", err)
	}
	if dept != nil {
		return &RoutingResult{
			DepartmentID: dept.ID,
			Confidence:   r.config.ExactMatchConfidence,
			Stage:        RouteStageExact,
		}, nil
	}

	// Stage 2: keyword overlap against department profiles
	active, err := r.departments.ListActive(ctx)
	if err != nil {
		return nil, Transient("routing", err)
	}
	if result := r.keywordMatch(report, active); result != nil {
		return result, nil
	}

	// Stage 3: learned matcher, when configured
	if r.config.EnableLearnedMatcher && len(active) > 0 {
		return r.learnedMatch(ctx, report, active)
	}

	r.logger.Info("No routing match for report",
		zap.Int64("report_id", report.ID),
		zap.String("category", category))
	return nil, nil
}

// keywordMatch scores each department by the share of its keyword profile
// found in the report text
func (r *DepartmentRouter) keywordMatch(report *entity.Report, departments []*entity.Department) *RoutingResult {
	text := strings.ToLower(report.Title + " " + report.Description)

	var best *RoutingResult
	for _, dept := range departments {
		if len(dept.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range dept.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(dept.Keywords))
		if best == nil || score > best.Confidence {
			best = &RoutingResult{
				DepartmentID: dept.ID,
				Confidence:   score,
				Stage:        RouteStageKeyword,
			}
		}
	}
	return best
}

// learnedMatch scores department names against the report text with the
// model. Unavailability is transient, like any other model outage.
func (r *DepartmentRouter) learnedMatch(ctx context.Context, report *entity.Report, departments []*entity.Department) (*RoutingResult, error) {
	labels := make([]string, len(departments))
	byName := make(map[string]int64, len(departments))
	for i, dept := range departments {
		labels[i] = dept.Name
		byName[dept.Name] = dept.ID
	}

	scores, err := r.intelligence.Classify(ctx, report.Title+" "+report.Description, labels)
	if err != nil {
		return nil, Transient("routing", err)
	}

	var best *RoutingResult
	for _, s := range scores {
		id, ok := byName[s.Label]
		if !ok {
			continue
		}
		if best == nil || s.Score > best.Confidence {
			best = &RoutingResult{
				DepartmentID: id,
				Confidence:   clamp01(s.Score),
				Stage:        RouteStageLearned,
			}
		}
	}
	return best, nil
}

package pipeline

import (
	"context"
	"time"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/domain/entity"
	"go.uber.org/zap"
)

// DedupConfig holds duplicate-detection tuning
type DedupConfig struct {
	// Window is the trailing period searched for candidates
	Window time.Duration

	// SimilarityThreshold is the minimum embedding cosine similarity for a
	// duplicate match
	SimilarityThreshold float64

	// DefaultRadiusMeters applies when no category-specific radius is set
	DefaultRadiusMeters float64

	// RadiusMetersByCategory tightens or loosens the spatial filter per
	// candidate category: point-like issues (potholes) get a tight radius,
	// area issues (drainage, water supply) a loose one.
	RadiusMetersByCategory map[string]float64
}

// DefaultDedupConfig returns the observed production defaults
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		Window:              30 * 24 * time.Hour,
		SimilarityThreshold: 0.85,
		DefaultRadiusMeters: 500,
		RadiusMetersByCategory: map[string]float64{
			entity.CategoryRoads:       150,
			entity.CategoryStreetlight: 100,
			entity.CategoryDrainage:    1000,
			entity.CategoryWater:       800,
		},
	}
}

// DuplicateMatch identifies the original report a new submission duplicates
type DuplicateMatch struct {
	OriginalID int64
	Similarity float64
	DistanceM  float64
}

// DuplicateFinder searches recent reports for spatial and semantic matches.
// The subject report is always excluded from its own candidate pool; without
// that exclusion a report would match itself and be marked its own duplicate.
type DuplicateFinder struct {
	config       DedupConfig
	reports      port.ReportRepository
	intelligence port.IntelligenceService
	distance     port.GeoDistanceFunc
	logger       *zap.Logger
}

// NewDuplicateFinder creates a duplicate finder
func NewDuplicateFinder(
	config DedupConfig,
	reports port.ReportRepository,
	intelligence port.IntelligenceService,
	distance port.GeoDistanceFunc,
	logger *zap.Logger,
) *DuplicateFinder {
	if distance == nil {
		distance = HaversineMeters
	}
	return &DuplicateFinder{
		config:       config,
		reports:      reports,
		intelligence: intelligence,
		distance:     distance,
		logger:       logger,
	}
}

// FindDuplicate returns the earliest-created prior report that clears both
// the spatial and the semantic filter, or nil when the report is original.
// Embedding failures are transient: without the model no duplicate decision
// can be made.
func (f *DuplicateFinder) FindDuplicate(ctx context.Context, report *entity.Report) (*DuplicateMatch, error) {
	if !report.HasCoordinates() {
		f.logger.Debug("Report has no coordinates, skipping duplicate search",
			zap.Int64("report_id", report.ID))
		return nil, nil
	}

	cutoff := time.Now().Add(-f.config.Window)
	candidates, err := f.reports.FindCandidates(ctx, report.ID, cutoff)
	if err != nil {
		return nil, Transient("dedup", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Spatial filter first: it is cheap and cuts the embedding calls down.
	var nearby []*entity.Report
	distances := make(map[int64]float64)
	for _, cand := range candidates {
		if cand.ID == report.ID {
			// FindCandidates already excludes the subject; this guard keeps
			// the no-self-duplication invariant even against a faulty store.
			continue
		}
		if !cand.HasCoordinates() {
			continue
		}
		d := f.distance(report.Latitude, report.Longitude, cand.Latitude, cand.Longitude)
		if d <= f.radiusFor(cand) {
			nearby = append(nearby, cand)
			distances[cand.ID] = d
		}
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	subjectVec, err := f.intelligence.Embed(ctx, report.Title+" "+report.Description)
	if err != nil {
		return nil, Transient("dedup", err)
	}

	// Among candidates clearing both filters, the earliest-created one is
	// the original.
	var best *DuplicateMatch
	var bestCreatedAt time.Time
	for _, cand := range nearby {
		candVec, err := f.intelligence.Embed(ctx, cand.Title+" "+cand.Description)
		if err != nil {
			return nil, Transient("dedup", err)
		}
		sim := CosineSimilarity(subjectVec, candVec)
		if sim < f.config.SimilarityThreshold {
			continue
		}
		if best == nil || cand.CreatedAt.Before(bestCreatedAt) {
			best = &DuplicateMatch{
				OriginalID: cand.ID,
				Similarity: sim,
				DistanceM:  distances[cand.ID],
			}
			bestCreatedAt = cand.CreatedAt
		}
	}

	if best != nil {
		f.logger.Info("Duplicate detected",
			zap.Int64("report_id", report.ID),
			zap.Int64("original_id", best.OriginalID),
			zap.Float64("similarity", best.Similarity),
			zap.Float64("distance_m", best.DistanceM))
	}
	return best, nil
}

func (f *DuplicateFinder) radiusFor(cand *entity.Report) float64 {
	if r, ok := f.config.RadiusMetersByCategory[cand.EffectiveCategory()]; ok {
		return r
	}
	return f.config.DefaultRadiusMeters
}

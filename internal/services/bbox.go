package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Bounding box defaults
const (
	DefaultWorldLonSpan         = 280.0
	DefaultWorldLatSpan         = 170.0
	DefaultWideLonSpan          = 270.0
	DefaultSuspiciousLonSpan    = 200.0
	DefaultSuspiciousLatSpan    = 150.0
	DefaultSuspiciousMinResults = 10
	DefaultBBoxMaxFeatures      = 5000
)

// BBoxMode describes how a bounding box query was resolved
type BBoxMode string

// Query modes
const (
	BBoxModeNormal       BBoxMode = "normal"
	BBoxModeAntimeridian BBoxMode = "antimeridian"
	BBoxModeWorldwide    BBoxMode = "worldwide"
)

// BBoxConfig holds the thresholds of the bounding box engine
type BBoxConfig struct {
	// A viewport wider or taller than these spans is treated as the whole world
	WorldLonSpan float64
	WorldLatSpan float64
	WideLonSpan  float64
	// A viewport larger than these spans returning fewer than SuspiciousMinResults
	// features is re-run as a world-wide query
	SuspiciousLonSpan    float64
	SuspiciousLatSpan    float64
	SuspiciousMinResults int64
	// DefaultLimit caps results when the query sets no limit
	DefaultLimit int
}

// BBoxResult is the outcome of a bounding box query
type BBoxResult struct {
	Features     []models.Feature
	Total        int64
	FallbackUsed bool
	Mode         BBoxMode
}

// BBoxEngine resolves viewport queries against the feature library
type BBoxEngine struct {
	features ports.FeatureRepository
	cfg      BBoxConfig
}

// NewBBoxEngine creates an engine, filling unset thresholds with defaults
func NewBBoxEngine(features ports.FeatureRepository, cfg BBoxConfig) *BBoxEngine {
	if cfg.WorldLonSpan <= 0 {
		cfg.WorldLonSpan = DefaultWorldLonSpan
	}
	if cfg.WorldLatSpan <= 0 {
		cfg.WorldLatSpan = DefaultWorldLatSpan
	}
	if cfg.WideLonSpan <= 0 {
		cfg.WideLonSpan = DefaultWideLonSpan
	}
	if cfg.SuspiciousLonSpan <= 0 {
		cfg.SuspiciousLonSpan = DefaultSuspiciousLonSpan
	}
	if cfg.SuspiciousLatSpan <= 0 {
		cfg.SuspiciousLatSpan = DefaultSuspiciousLatSpan
	}
	if cfg.SuspiciousMinResults <= 0 {
		cfg.SuspiciousMinResults = DefaultSuspiciousMinResults
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = DefaultBBoxMaxFeatures
	}
	return &BBoxEngine{features: features, cfg: cfg}
}

// Query returns the owner's features visible in the viewport, ordered by ID.
// Total is counted before the result cap is applied.
func (e *BBoxEngine) Query(ctx context.Context, ownerID uint, q types.BBoxQuery) (*BBoxResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	base, err := e.baseFilter(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}

	lonSpan, latSpan := q.LonSpan(), q.LatSpan()
	crossing := q.CrossesAntimeridian()
	worldWide := lonSpan > e.cfg.WorldLonSpan || latSpan > e.cfg.WorldLatSpan || lonSpan > e.cfg.WideLonSpan

	switch {
	case crossing:
		return e.run(ctx, base, BBoxModeAntimeridian, false)
	case worldWide:
		return e.run(ctx, base, BBoxModeWorldwide, false)
	}

	bound := orb.Bound{Min: orb.Point{q.MinLon, q.MinLat}, Max: orb.Point{q.MaxLon, q.MaxLat}}
	if !validEnvelope(bound) {
		logger.DebugWithFields("invalid viewport, falling back to world-wide query", map[string]interface{}{
			"owner_id": ownerID,
			"bbox":     q.String(),
		})
		return e.run(ctx, base, BBoxModeWorldwide, true)
	}

	spatial := base
	spatial.Bound = &bound
	result, err := e.run(ctx, spatial, BBoxModeNormal, false)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WarnWithFields("spatial query failed, falling back to world-wide query", map[string]interface{}{
			"owner_id": ownerID,
			"bbox":     q.String(),
			"error":    err.Error(),
		})
		return e.run(ctx, base, BBoxModeWorldwide, true)
	}

	suspicious := lonSpan > e.cfg.SuspiciousLonSpan || latSpan > e.cfg.SuspiciousLatSpan
	if suspicious && result.Total < e.cfg.SuspiciousMinResults {
		logger.DebugWithFields("large viewport with few results, re-running world-wide", map[string]interface{}{
			"owner_id": ownerID,
			"bbox":     q.String(),
			"total":    result.Total,
		})
		return e.run(ctx, base, BBoxModeWorldwide, true)
	}
	return result, nil
}

func (e *BBoxEngine) run(ctx context.Context, filter ports.FeatureFilter, mode BBoxMode, fallback bool) (*BBoxResult, error) {
	total, err := e.features.CountFeatures(ctx, filter)
	if err != nil {
		return nil, err
	}
	features, err := e.features.QueryFeatures(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &BBoxResult{Features: features, Total: total, FallbackUsed: fallback, Mode: mode}, nil
}

// baseFilter applies owner, tag, collection and limit constraints
func (e *BBoxEngine) baseFilter(ctx context.Context, ownerID uint, q types.BBoxQuery) (ports.FeatureFilter, error) {
	filter := ports.FeatureFilter{OwnerID: ownerID, Tags: q.Tags}

	switch {
	case q.Limit == types.UnlimitedFeatures:
		filter.Limit = 0
	case q.Limit > 0:
		filter.Limit = q.Limit
	default:
		filter.Limit = max(e.cfg.DefaultLimit, 0)
	}

	if q.CollectionID == 0 {
		return filter, nil
	}
	collection, err := e.features.GetCollection(ctx, ownerID, q.CollectionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return filter, types.NewValidationError("collection_id", "collection %d does not exist", q.CollectionID)
		}
		return filter, fmt.Errorf("failed to load collection: %w", err)
	}
	tags, err := collection.TagList()
	if err != nil {
		return filter, err
	}
	ids, err := collection.IDList()
	if err != nil {
		return filter, err
	}
	if len(tags) == 0 && len(ids) == 0 {
		// an empty collection matches nothing
		ids = []uint{0}
	}
	filter.CollectionTags = tags
	filter.FeatureIDs = ids
	return filter, nil
}

// validEnvelope reports whether the viewport has finite, ordered corners.
// Zero-area boxes are valid: a point or a line still overlaps features.
func validEnvelope(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1]
}

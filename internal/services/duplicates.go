package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-set/v2"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Duplicate detection defaults
const (
	DefaultDuplicateBatchThreshold = 1000
	DefaultDuplicateBatchSize      = 100
	DefaultDuplicateConcurrency    = 4

	geometryCollectionType = "GeometryCollection"
	// hashChunkSize is the number of features hashed per goroutine
	hashChunkSize = 500
)

// DuplicateConfig tunes library duplicate detection
type DuplicateConfig struct {
	// BatchThreshold is the feature count from which lookups are batched
	BatchThreshold int
	// BatchSize is the number of geometries per batched lookup
	BatchSize int
	// Concurrency bounds the batched lookups running at once
	Concurrency int
}

// SeenSet is a set of content hashes safe for concurrent use
type SeenSet struct {
	mu     sync.Mutex
	hashes *set.Set[string]
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{hashes: set.New[string](0)}
}

// Add inserts hash and reports whether it was not present before
func (s *SeenSet) Add(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes.Insert(hash)
}

// Contains reports whether hash was added
func (s *SeenSet) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes.Contains(hash)
}

// Len returns the number of distinct hashes
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes.Size()
}

// HashedFeature is a feature with its content hash and canonical geometry
type HashedFeature struct {
	Feature     types.Feature
	ContentHash string
	GeometryKey string
}

// DetectionResult is the outcome of a library duplicate check.
// Duplicates reference candidates by their index in the checked slice.
type DetectionResult struct {
	Features   []HashedFeature
	Duplicates []types.DuplicateRecord
}

// UniqueCount returns how many candidates have no match in the library
func (r DetectionResult) UniqueCount() int {
	return len(r.Features) - len(r.Duplicates)
}

// DuplicateDetector finds duplicates inside an upload and against the user's library
type DuplicateDetector struct {
	features ports.FeatureRepository
	cfg      DuplicateConfig
}

// NewDuplicateDetector creates a detector backed by the feature repository
func NewDuplicateDetector(features ports.FeatureRepository, cfg DuplicateConfig) *DuplicateDetector {
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = DefaultDuplicateBatchThreshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultDuplicateBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultDuplicateConcurrency
	}
	return &DuplicateDetector{features: features, cfg: cfg}
}

// Hash computes content hashes and geometry keys, in parallel chunks
func (d *DuplicateDetector) Hash(ctx context.Context, features []types.Feature) ([]HashedFeature, error) {
	out := make([]HashedFeature, len(features))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)

	for start := 0; start < len(features); start += hashChunkSize {
		start := start
		end := min(start+hashChunkSize, len(features))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				hash, err := features[i].ContentHash()
				if err != nil {
					return fmt.Errorf("feature %d: %w", i, err)
				}
				key, err := types.GeometryKey(features[i].Geometry)
				if err != nil {
					return fmt.Errorf("feature %d: %w", i, err)
				}
				out[i] = HashedFeature{Feature: features[i], ContentHash: hash, GeometryKey: key}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DedupeInternal drops features whose content hash already appeared earlier in
// the same upload. It returns the survivors in their original order and the
// number dropped.
func (d *DuplicateDetector) DedupeInternal(ctx context.Context, features []types.Feature) ([]HashedFeature, int, error) {
	hashed, err := d.Hash(ctx, features)
	if err != nil {
		return nil, 0, err
	}

	seen := NewSeenSet()
	unique := make([]HashedFeature, 0, len(hashed))
	for _, hf := range hashed {
		if seen.Add(hf.ContentHash) {
			unique = append(unique, hf)
		}
	}
	return unique, len(hashed) - len(unique), nil
}

// DetectLibrary checks every candidate against the owner's committed features.
// Lookup failures are logged and the affected candidates treated as unique.
func (d *DuplicateDetector) DetectLibrary(ctx context.Context, ownerID uint, candidates []HashedFeature) (DetectionResult, error) {
	result := DetectionResult{Features: candidates}
	if len(candidates) == 0 {
		return result, nil
	}

	var matches map[int][]models.Feature
	var err error
	if len(candidates) < d.cfg.BatchThreshold {
		matches, err = d.detectEach(ctx, ownerID, candidates)
	} else {
		matches, err = d.detectBatched(ctx, ownerID, candidates)
	}
	if err != nil {
		return DetectionResult{}, err
	}

	indexes := make([]int, 0, len(matches))
	for idx := range matches {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	for _, idx := range indexes {
		c := candidates[idx]
		record := types.DuplicateRecord{
			Index:       idx,
			ContentHash: c.ContentHash,
			Name:        c.Feature.Properties.Name,
		}
		for _, m := range matches[idx] {
			record.Matches = append(record.Matches, m.Match())
		}
		result.Duplicates = append(result.Duplicates, record)
	}
	return result, nil
}

func (d *DuplicateDetector) detectEach(ctx context.Context, ownerID uint, candidates []HashedFeature) (map[int][]models.Feature, error) {
	matches := make(map[int][]models.Feature)
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if found, ok := d.findMatches(ctx, ownerID, c.Feature.Geometry, c.GeometryKey); ok {
			matches[i] = found
		}
	}
	return matches, nil
}

type lookupBatch struct {
	geometryType string
	indexes      []int
}

func (d *DuplicateDetector) detectBatched(ctx context.Context, ownerID uint, candidates []HashedFeature) (map[int][]models.Feature, error) {
	byType := make(map[string][]int)
	var typeOrder []string
	for i, c := range candidates {
		t := c.Feature.GeometryType()
		if _, ok := byType[t]; !ok {
			typeOrder = append(typeOrder, t)
		}
		byType[t] = append(byType[t], i)
	}

	var batches []lookupBatch
	for _, t := range typeOrder {
		idx := byType[t]
		for start := 0; start < len(idx); start += d.cfg.BatchSize {
			end := min(start+d.cfg.BatchSize, len(idx))
			batches = append(batches, lookupBatch{geometryType: t, indexes: idx[start:end]})
		}
	}

	var mu sync.Mutex
	matches := make(map[int][]models.Feature)
	var unmatchedCollections []int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			keys := make([]string, len(batch.indexes))
			for i, idx := range batch.indexes {
				keys[i] = candidates[idx].GeometryKey
			}

			found, err := d.features.FindByGeometries(gctx, ownerID, batch.geometryType, keys)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.WarnWithFields("duplicate lookup batch failed, treating batch as unique", map[string]interface{}{
					"owner_id":      ownerID,
					"geometry_type": batch.geometryType,
					"batch_size":    len(batch.indexes),
					"error":         err.Error(),
				})
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, idx := range batch.indexes {
				if m := found[candidates[idx].GeometryKey]; len(m) > 0 {
					matches[idx] = m
				} else if batch.geometryType == geometryCollectionType {
					unmatchedCollections = append(unmatchedCollections, idx)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Ints(unmatchedCollections)
	for _, idx := range unmatchedCollections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c, ok := candidates[idx].Feature.Geometry.(orb.Collection); ok {
			if found, ok := d.findInCollection(ctx, ownerID, c); ok {
				matches[idx] = found
			}
		}
	}
	return matches, nil
}

// findMatches looks up one geometry. Collections match either as a whole or
// through their first matching member.
func (d *DuplicateDetector) findMatches(ctx context.Context, ownerID uint, geom orb.Geometry, key string) ([]models.Feature, bool) {
	found, err := d.features.FindByGeometry(ctx, ownerID, geom.GeoJSONType(), key)
	if err != nil {
		logger.WarnWithFields("duplicate lookup failed, treating feature as unique", map[string]interface{}{
			"owner_id":      ownerID,
			"geometry_type": geom.GeoJSONType(),
			"error":         err.Error(),
		})
	} else if len(found) > 0 {
		return found, true
	}

	if c, ok := geom.(orb.Collection); ok {
		return d.findInCollection(ctx, ownerID, c)
	}
	return nil, false
}

// findInCollection returns the matches of the first member of c found in the
// library, searching nested collections depth first
func (d *DuplicateDetector) findInCollection(ctx context.Context, ownerID uint, c orb.Collection) ([]models.Feature, bool) {
	for _, member := range c {
		if ctx.Err() != nil {
			return nil, false
		}
		key, err := types.GeometryKey(member)
		if err != nil {
			continue
		}
		if found, ok := d.findMatches(ctx, ownerID, member, key); ok {
			return found, true
		}
	}
	return nil, false
}

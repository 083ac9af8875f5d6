package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-set/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

const (
	// insertBatchSize is the number of rows sent per INSERT statement
	insertBatchSize = 100
	tagLikeClause   = "tag_index LIKE ? ESCAPE '\\'"
)

// FeatureRepository provides access to committed features
type FeatureRepository struct {
	db *gorm.DB
}

var _ ports.FeatureRepository = (*FeatureRepository)(nil)

// NewFeatureRepository creates a new feature repository instance
func NewFeatureRepository(db *gorm.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// FindByGeometry returns the owner's features whose geometry is identical to geometryKey
func (r *FeatureRepository) FindByGeometry(ctx context.Context, ownerID uint, geometryType, geometryKey string) ([]models.Feature, error) {
	matches, err := r.FindByGeometries(ctx, ownerID, geometryType, []string{geometryKey})
	if err != nil {
		return nil, err
	}
	return matches[geometryKey], nil
}

// FindByGeometries looks up many geometries of one family at once.
// Candidates are narrowed with the indexed geometry hash and then compared on the full text.
func (r *FeatureRepository) FindByGeometries(ctx context.Context, ownerID uint, geometryType string, geometryKeys []string) (map[string][]models.Feature, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	result := make(map[string][]models.Feature)
	if len(geometryKeys) == 0 {
		return result, nil
	}

	wanted := set.New[string](len(geometryKeys))
	hashes := make([]string, 0, len(geometryKeys))
	for _, key := range geometryKeys {
		if wanted.Insert(key) {
			hashes = append(hashes, types.HashBytes([]byte(key)))
		}
	}

	var rows []models.Feature
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND geometry_type = ?", ownerID, geometryType).
		Where("geometry_hash IN ?", hashes).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find features by geometry: %w", err)
	}

	for _, row := range rows {
		if wanted.Contains(row.Geometry) {
			result[row.Geometry] = append(result[row.Geometry], row)
		}
	}
	return result, nil
}

// GetByID retrieves a feature owned by ownerID
func (r *FeatureRepository) GetByID(ctx context.Context, ownerID, id uint) (*models.Feature, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	var feature models.Feature
	err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&feature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("feature %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}
	return &feature, nil
}

// BulkCreate inserts features, skipping rows whose (owner, content hash) already exists.
// Returns the number of rows inserted.
func (r *FeatureRepository) BulkCreate(ctx context.Context, features []*models.Feature) (int, error) {
	if len(features) == 0 {
		return 0, nil
	}
	for _, f := range features {
		if err := models.ValidateOwnerID(f.OwnerID); err != nil {
			return 0, fmt.Errorf("invalid owner_id: %w", err)
		}
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: models.FeatureOwnerIDField}, {Name: models.FeatureContentHashField}},
			DoNothing: true,
		}).
		CreateInBatches(features, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert features: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// GetExistingHashes returns every content hash the owner has committed
func (r *FeatureRepository) GetExistingHashes(ctx context.Context, ownerID uint) (*set.Set[string], error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	var hashes []string
	err := r.db.WithContext(ctx).Model(&models.Feature{}).
		Where("owner_id = ?", ownerID).
		Pluck(models.FeatureContentHashField, &hashes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load content hashes: %w", err)
	}
	return set.From(hashes), nil
}

// ReplaceGeometry swaps the geometry of an existing feature, keeping its properties
func (r *FeatureRepository) ReplaceGeometry(ctx context.Context, ownerID, id uint, feature types.Feature) (*models.Feature, error) {
	existing, err := r.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := existing.ApplyGeometry(feature); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("failed to replace geometry of feature %d: %w", id, err)
	}
	return existing, nil
}

// DeleteByIDs removes the owner's features with the given IDs. IDs owned by
// someone else are ignored.
func (r *FeatureRepository) DeleteByIDs(ctx context.Context, ownerID uint, ids []uint) (int64, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return 0, fmt.Errorf("invalid owner_id: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Delete(&models.Feature{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete features: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountFeatures counts the features matching filter, ignoring its limit
func (r *FeatureRepository) CountFeatures(ctx context.Context, filter ports.FeatureFilter) (int64, error) {
	q, err := r.filtered(ctx, filter)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return count, nil
}

// QueryFeatures returns the features matching filter ordered by ID
func (r *FeatureRepository) QueryFeatures(ctx context.Context, filter ports.FeatureFilter) ([]models.Feature, error) {
	q, err := r.filtered(ctx, filter)
	if err != nil {
		return nil, err
	}
	q = q.Order("id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var features []models.Feature
	if err := q.Find(&features).Error; err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	return features, nil
}

// GetCollection retrieves a collection owned by ownerID
func (r *FeatureRepository) GetCollection(ctx context.Context, ownerID, id uint) (*models.Collection, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	var collection models.Collection
	err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("collection %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &collection, nil
}

// CreateCollection stores a new collection
func (r *FeatureRepository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	if err := models.ValidateOwnerID(collection.OwnerID); err != nil {
		return fmt.Errorf("invalid owner_id: %w", err)
	}
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *FeatureRepository) filtered(ctx context.Context, filter ports.FeatureFilter) (*gorm.DB, error) {
	if err := models.ValidateOwnerID(filter.OwnerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	q := r.db.WithContext(ctx).Model(&models.Feature{}).Where("owner_id = ?", filter.OwnerID)

	if b := filter.Bound; b != nil {
		// envelope overlap
		q = q.Where("max_lon >= ? AND min_lon <= ? AND max_lat >= ? AND min_lat <= ?",
			b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat())
	}
	if len(filter.Tags) > 0 {
		q = q.Where(r.anyTag(filter.Tags))
	}
	if filter.HasCollection() {
		var cond *gorm.DB
		if len(filter.CollectionTags) > 0 {
			cond = r.anyTag(filter.CollectionTags)
			if len(filter.FeatureIDs) > 0 {
				cond = cond.Or("id IN ?", filter.FeatureIDs)
			}
		} else {
			cond = r.newCond().Where("id IN ?", filter.FeatureIDs)
		}
		q = q.Where(cond)
	}
	return q, nil
}

func (r *FeatureRepository) newCond() *gorm.DB {
	return r.db.Session(&gorm.Session{NewDB: true})
}

// anyTag builds "(tag_index LIKE a OR tag_index LIKE b ...)"
func (r *FeatureRepository) anyTag(tags []string) *gorm.DB {
	cond := r.newCond()
	for i, tag := range tags {
		if i == 0 {
			cond = cond.Where(tagLikeClause, models.TagPattern(tag))
			continue
		}
		cond = cond.Or(tagLikeClause, models.TagPattern(tag))
	}
	return cond
}

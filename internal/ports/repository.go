package ports

import (
	"context"
	"time"

	"github.com/hashicorp/go-set/v2"
	"github.com/paulmach/orb"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/types"
)

// FeatureFilter narrows a feature query. Zero values mean "no constraint".
type FeatureFilter struct {
	OwnerID uint
	// Bound restricts results to features whose envelope intersects it
	Bound *orb.Bound
	// Tags matches features carrying any of the tags
	Tags []string
	// CollectionTags and FeatureIDs together describe a collection:
	// features with any of the tags, plus the listed IDs
	CollectionTags []string
	FeatureIDs     []uint
	// Limit caps the number of rows returned, values <= 0 return everything
	Limit int
}

// HasCollection reports whether the filter is scoped to a collection
func (f FeatureFilter) HasCollection() bool {
	return len(f.CollectionTags) > 0 || len(f.FeatureIDs) > 0
}

// ProcessedUpdate is the single write made once an upload has been converted and checked
type ProcessedUpdate struct {
	Features      []types.Feature
	Duplicates    []types.DuplicateRecord
	ConversionLog []string
}

// FeatureRepository persists committed features
type FeatureRepository interface {
	// FindByGeometry returns the owner's features whose geometry is identical to geometryKey
	FindByGeometry(ctx context.Context, ownerID uint, geometryType, geometryKey string) ([]models.Feature, error)
	// FindByGeometries batches FindByGeometry, keyed by geometry key
	FindByGeometries(ctx context.Context, ownerID uint, geometryType string, geometryKeys []string) (map[string][]models.Feature, error)
	GetByID(ctx context.Context, ownerID, id uint) (*models.Feature, error)
	// BulkCreate inserts features, silently skipping content hashes the owner already has.
	// It returns the number of rows actually inserted.
	BulkCreate(ctx context.Context, features []*models.Feature) (int, error)
	GetExistingHashes(ctx context.Context, ownerID uint) (*set.Set[string], error)
	ReplaceGeometry(ctx context.Context, ownerID, id uint, feature types.Feature) (*models.Feature, error)
	DeleteByIDs(ctx context.Context, ownerID uint, ids []uint) (int64, error)
	CountFeatures(ctx context.Context, filter FeatureFilter) (int64, error)
	QueryFeatures(ctx context.Context, filter FeatureFilter) ([]models.Feature, error)
	GetCollection(ctx context.Context, ownerID, id uint) (*models.Collection, error)
	CreateCollection(ctx context.Context, collection *models.Collection) error
}

// ImportRepository persists the staging area of uploaded files
type ImportRepository interface {
	Create(ctx context.Context, item *models.ImportItem) error
	Get(ctx context.Context, ownerID, id uint) (*models.ImportItem, error)
	List(ctx context.Context, ownerID uint, status models.ImportItemStatus, opts *models.ListOptions) ([]models.ImportItem, error)
	UpdateStatus(ctx context.Context, ownerID, id uint, status models.ImportItemStatus, errMsg string) error
	// UpdateProcessed stores converted features, duplicates and counts and marks the item ready.
	// It returns types.ErrNotFound when the item was deleted meanwhile.
	UpdateProcessed(ctx context.Context, ownerID, id uint, update ProcessedUpdate) error
	// MarkImported erases the staged features and records the commit
	MarkImported(ctx context.Context, ownerID, id uint, importedCount int, at time.Time) error
	// Delete removes the item and clears the source reference of committed features
	Delete(ctx context.Context, ownerID, id uint) error
	// DeleteStaleReplacements removes unconsumed replacement items created before cutoff
	DeleteStaleReplacements(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store groups the repositories and runs work inside a transaction
type Store interface {
	Features() FeatureRepository
	Imports() ImportRepository
	// Transaction runs fn against a store bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

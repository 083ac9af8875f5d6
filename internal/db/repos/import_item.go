package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// ImportItemRepository provides access to the upload staging area
type ImportItemRepository struct {
	db *gorm.DB
}

var _ ports.ImportRepository = (*ImportItemRepository)(nil)

// NewImportItemRepository creates a new import item repository instance
func NewImportItemRepository(db *gorm.DB) *ImportItemRepository {
	return &ImportItemRepository{db: db}
}

// Create creates a new import item in the database
func (r *ImportItemRepository) Create(ctx context.Context, item *models.ImportItem) error {
	if err := models.ValidateOwnerID(item.OwnerID); err != nil {
		return fmt.Errorf("invalid owner_id: %w", err)
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// Get retrieves an import item by its ID
func (r *ImportItemRepository) Get(ctx context.Context, ownerID, id uint) (*models.ImportItem, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	var item models.ImportItem
	err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("import item %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import item: %w", err)
	}
	return &item, nil
}

// List returns the owner's import items, newest first.
// If the status is unknown, items are returned regardless of their status.
func (r *ImportItemRepository) List(ctx context.Context, ownerID uint, status models.ImportItemStatus, opts *models.ListOptions) ([]models.ImportItem, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("invalid owner_id: %w", err)
	}
	q := r.db.WithContext(ctx).
		// the staged features can be large, they are only loaded by Get
		Omit("features").
		Where("owner_id = ?", ownerID)
	if status != models.ImportItemStatusUnknown {
		q = q.Where("status = ?", status)
	}
	if opts != nil {
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
	}

	var items []models.ImportItem
	if err := q.Order(models.ImportItemCreatedAtField + " DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list import items: %w", err)
	}
	return items, nil
}

// UpdateStatus updates the status and error message of an import item
func (r *ImportItemRepository) UpdateStatus(ctx context.Context, ownerID, id uint, status models.ImportItemStatus, errMsg string) error {
	return r.update(ctx, ownerID, id, map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})
}

// UpdateProcessed stores the outcome of an upload in a single statement
func (r *ImportItemRepository) UpdateProcessed(ctx context.Context, ownerID, id uint, update ports.ProcessedUpdate) error {
	features, err := models.EncodeFeatures(update.Features)
	if err != nil {
		return err
	}
	duplicates, err := models.EncodeDuplicates(update.Duplicates)
	if err != nil {
		return err
	}
	conversionLog := update.ConversionLog
	if conversionLog == nil {
		conversionLog = []string{}
	}
	logJSON, err := json.Marshal(conversionLog)
	if err != nil {
		return fmt.Errorf("failed to encode conversion log: %w", err)
	}

	return r.update(ctx, ownerID, id, map[string]interface{}{
		"features":        features,
		"duplicates":      duplicates,
		"conversion_log":  datatypes.JSON(logJSON),
		"feature_count":   len(update.Features),
		"duplicate_count": len(update.Duplicates),
		"status":          models.ImportItemStatusReady,
		"error":           "",
	})
}

// MarkImported erases the staged features and records the commit
func (r *ImportItemRepository) MarkImported(ctx context.Context, ownerID, id uint, importedCount int, at time.Time) error {
	return r.update(ctx, ownerID, id, map[string]interface{}{
		"features":       nil,
		"imported":       true,
		"imported_at":    at,
		"imported_count": importedCount,
	})
}

// Delete removes the import item. Features committed from it are kept and
// their source reference is cleared.
func (r *ImportItemRepository) Delete(ctx context.Context, ownerID, id uint) error {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return fmt.Errorf("invalid owner_id: %w", err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Feature{}).
			Where("owner_id = ? AND source_item_id = ?", ownerID, id).
			Update(models.FeatureSourceItemField, nil).Error
		if err != nil {
			return fmt.Errorf("failed to clear feature source: %w", err)
		}

		res := tx.Where("owner_id = ? AND id = ?", ownerID, id).Delete(&models.ImportItem{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete import item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("import item %d: %w", id, types.ErrNotFound)
		}
		return nil
	})
}

// DeleteStaleReplacements removes replacement uploads that were never committed
// and were created before cutoff
func (r *ImportItemRepository) DeleteStaleReplacements(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where(models.ImportItemReplacementField+" IS NOT NULL").
		Where("imported = ? AND created_at < ?", false, cutoff).
		Delete(&models.ImportItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale replacements: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ImportItemRepository) update(ctx context.Context, ownerID, id uint, values map[string]interface{}) error {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return fmt.Errorf("invalid owner_id: %w", err)
	}
	res := r.db.WithContext(ctx).Model(&models.ImportItem{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update import item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("import item %d: %w", id, types.ErrNotFound)
	}
	return nil
}

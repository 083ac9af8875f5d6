package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-set/v2"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Reasons reported for import items a commit left alone
const (
	reasonNotFound        = "import item not found"
	reasonAlreadyImported = "already imported"
	reasonNotReady        = "import item is not ready"
	reasonTargetGone      = "replacement target no longer exists"
	reasonEmpty           = "import item has no features"
)

// BulkImportJob commits staged import items into the feature library
type BulkImportJob struct {
	ItemIDs []uint
	// IncludeDuplicates commits features flagged as library duplicates.
	// Features whose content hash is already in the library are skipped regardless.
	IncludeDuplicates bool
	Store             ports.Store
	Now               func() time.Time
}

// Run commits each item in its own transaction
func (j *BulkImportJob) Run(ctx context.Context, jc *JobContext) error {
	result := types.CommitResult{Items: make([]types.CommitItemResult, 0, len(j.ItemIDs))}

	for i, id := range j.ItemIDs {
		if err := jc.Checkpoint(); err != nil {
			return err
		}
		jc.Progress(i*100/len(j.ItemIDs), fmt.Sprintf("Committing item %d of %d", i+1, len(j.ItemIDs)))

		item, err := j.commitItem(ctx, jc.OwnerID, id)
		if err != nil {
			return fmt.Errorf("failed to commit import item %d: %w", id, err)
		}
		result.Items = append(result.Items, item)
		result.Imported += item.Imported
		result.Skipped += item.Skipped

		if item.Reason == "" {
			jc.Publish(events.EventFeaturesCommitted, types.FeaturesEvent{
				JobID:        jc.ID,
				ImportItemID: id,
				Count:        int64(item.Imported),
			})
		}
	}

	logger.InfoWithFields("import items committed", logger.WithFields(jc.LogFields(), map[string]interface{}{
		"items":    len(j.ItemIDs),
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}))
	jc.Complete(fmt.Sprintf("Committed %d features from %d items (%d skipped)",
		result.Imported, len(j.ItemIDs), result.Skipped), result)
	return nil
}

func (j *BulkImportJob) commitItem(ctx context.Context, ownerID, itemID uint) (types.CommitItemResult, error) {
	res := types.CommitItemResult{ImportItemID: itemID}

	err := j.Store.Transaction(ctx, func(tx ports.Store) error {
		item, err := tx.Imports().Get(ctx, ownerID, itemID)
		if errors.Is(err, types.ErrNotFound) {
			res.Reason = reasonNotFound
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case item.Imported:
			res.Reason = reasonAlreadyImported
			return nil
		case item.Status != models.ImportItemStatusReady:
			res.Reason = reasonNotReady
			return nil
		}

		features, err := item.DomainFeatures()
		if err != nil {
			return err
		}
		if len(features) == 0 {
			res.Reason = reasonEmpty
			return nil
		}

		if item.IsReplacement() {
			updated, err := tx.Features().ReplaceGeometry(ctx, ownerID, *item.ReplacementTargetID, features[0])
			if errors.Is(err, types.ErrNotFound) {
				res.Reason = reasonTargetGone
				return nil
			}
			if err != nil {
				return err
			}
			res.Imported = 1
			res.Replaced = updated.ID
		} else {
			imported, skipped, err := j.insertFeatures(ctx, tx, item, features)
			if err != nil {
				return err
			}
			res.Imported, res.Skipped = imported, skipped
		}
		return tx.Imports().MarkImported(ctx, ownerID, itemID, res.Imported, j.now())
	})
	return res, err
}

// insertFeatures writes the item's features, skipping flagged duplicates and
// hashes the owner already has
func (j *BulkImportJob) insertFeatures(ctx context.Context, tx ports.Store, item *models.ImportItem, features []types.Feature) (int, int, error) {
	flagged := set.New[int](0)
	if !j.IncludeDuplicates {
		records, err := item.DuplicateRecords()
		if err != nil {
			return 0, 0, err
		}
		for _, r := range records {
			flagged.Insert(r.Index)
		}
	}

	existing, err := tx.Features().GetExistingHashes(ctx, item.OwnerID)
	if err != nil {
		return 0, 0, err
	}

	rows := make([]*models.Feature, 0, len(features))
	for idx, f := range features {
		if flagged.Contains(idx) {
			continue
		}
		row, err := models.NewFeature(item.OwnerID, f, &item.ID)
		if err != nil {
			return 0, 0, fmt.Errorf("staged feature %d: %w", idx, err)
		}
		if !existing.Insert(row.ContentHash) {
			continue
		}
		rows = append(rows, row)
	}

	inserted, err := tx.Features().BulkCreate(ctx, rows)
	if err != nil {
		return 0, 0, err
	}
	return inserted, len(features) - inserted, nil
}

func (j *BulkImportJob) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

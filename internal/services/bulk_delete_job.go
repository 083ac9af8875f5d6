package services

import (
	"context"
	"fmt"

	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// DeleteBatchSize is the number of features removed per statement
const DeleteBatchSize = 500

// BulkDeleteJob removes committed features from the owner's library
type BulkDeleteJob struct {
	FeatureIDs []uint
	// BatchSize overrides DeleteBatchSize when positive
	BatchSize int
	Store     ports.Store
}

// Run deletes the features batch by batch, checking for cancellation in between.
// Batches already deleted stay deleted when the job is cancelled.
func (j *BulkDeleteJob) Run(ctx context.Context, jc *JobContext) error {
	size := j.BatchSize
	if size <= 0 {
		size = DeleteBatchSize
	}
	if !jc.Progress(0, fmt.Sprintf("Deleting %d features", len(j.FeatureIDs))) {
		return types.ErrCancelled
	}

	var deleted int64
	for start := 0; start < len(j.FeatureIDs); start += size {
		if err := jc.Checkpoint(); err != nil {
			return err
		}
		end := min(start+size, len(j.FeatureIDs))
		n, err := j.Store.Features().DeleteByIDs(ctx, jc.OwnerID, j.FeatureIDs[start:end])
		if err != nil {
			return fmt.Errorf("failed to delete features: %w", err)
		}
		deleted += n
		jc.Progress(end*100/len(j.FeatureIDs), fmt.Sprintf("Deleted %d of %d features", end, len(j.FeatureIDs)))
	}

	jc.Publish(events.EventFeaturesDeleted, types.FeaturesEvent{JobID: jc.ID, Count: deleted})
	logger.InfoWithFields("features deleted", logger.WithFields(jc.LogFields(), map[string]interface{}{
		"requested": len(j.FeatureIDs),
		"deleted":   deleted,
	}))
	jc.Complete(fmt.Sprintf("Deleted %d features", deleted), types.DeleteResult{
		Requested: len(j.FeatureIDs),
		Deleted:   deleted,
	})
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// DeleteJob removes one import item. Features already committed from it stay
// in the library.
type DeleteJob struct {
	ItemID uint
	Store  ports.Store
}

// Run deletes the import item
func (j *DeleteJob) Run(ctx context.Context, jc *JobContext) error {
	if !jc.Progress(50, "Deleting import item") {
		return types.ErrCancelled
	}

	err := j.Store.Imports().Delete(ctx, jc.OwnerID, j.ItemID)
	if errors.Is(err, types.ErrNotFound) {
		return types.NewPublicError(fmt.Sprintf("import item %d not found", j.ItemID), err)
	}
	if err != nil {
		return err
	}

	jc.Publish(events.EventItemDeleted, types.ItemEvent{ImportItemID: j.ItemID, JobID: jc.ID})
	logger.InfoWithFields("import item deleted", logger.WithFields(jc.LogFields(), map[string]interface{}{
		"item_id": j.ItemID,
	}))
	jc.Complete(fmt.Sprintf("Deleted import item %d", j.ItemID), types.DeleteResult{ImportItemID: j.ItemID, Deleted: 1})
	return nil
}

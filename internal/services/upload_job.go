package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Conversion time budget
const (
	BaseConversionTimeout  = 30 * time.Second
	ConversionTimeoutPerMB = 2 * time.Second

	itemStatusTimeout = 5 * time.Second
)

// ConversionTimeout returns the time budget for converting a file of size bytes
func ConversionTimeout(size int) time.Duration {
	mb := (size + (1 << 20) - 1) >> 20
	return BaseConversionTimeout + time.Duration(mb)*ConversionTimeoutPerMB
}

// UploadJob converts an uploaded file, checks it for duplicates and stages
// the result on its import item
type UploadJob struct {
	ItemID      uint
	Data        []byte
	Replacement bool
	// Timeout overrides the size based conversion budget when positive
	Timeout time.Duration

	Store     ports.Store
	Validator ports.FileValidator
	Converter ports.FileConverter
	Detector  *DuplicateDetector
}

// Run executes the upload stages
func (j *UploadJob) Run(ctx context.Context, jc *JobContext) (err error) {
	fields := logger.WithFields(jc.LogFields(), map[string]interface{}{"item_id": j.ItemID})
	defer func() {
		if err != nil {
			j.markItemFailed(jc, err)
		}
	}()

	jc.Update(types.JobStatusUploaded, "Validating file", WithProgress(10))
	if err := j.Validator.Validate(j.Data, jc.Filename); err != nil {
		return err
	}

	if !jc.Progress(30, "Converting file") {
		return types.ErrCancelled
	}
	if err := j.Store.Imports().UpdateStatus(ctx, jc.OwnerID, j.ItemID, models.ImportItemStatusProcessing, ""); err != nil {
		return itemError(err)
	}

	if err := jc.Checkpoint(); err != nil {
		return err
	}
	fc, conversionLog, err := j.convert(ctx, jc)
	if err != nil {
		return err
	}
	if err := jc.Checkpoint(); err != nil {
		return err
	}

	features, conversionLog := toDomainFeatures(fc, conversionLog)
	if len(features) == 0 {
		return types.NewValidationError("file", "no supported features found in %s", jc.Filename)
	}
	logger.DebugWithFields("file converted", logger.WithFields(fields, map[string]interface{}{
		"features": len(features),
		"skipped":  len(conversionLog),
	}))

	update := ports.ProcessedUpdate{ConversionLog: conversionLog}
	result := types.UploadResult{ImportItemID: j.ItemID, Replacement: j.Replacement}

	if j.Replacement {
		if len(features) > 1 {
			update.ConversionLog = append(update.ConversionLog,
				fmt.Sprintf("replacement uses the first of %d features", len(features)))
		}
		update.Features = features[:1]
		jc.Progress(80, "Replacement upload, skipping duplicate detection")
	} else {
		jc.Progress(60, "Removing duplicates within the file")
		unique, dropped, err := j.Detector.DedupeInternal(ctx, features)
		if err != nil {
			return err
		}
		if dropped > 0 {
			update.ConversionLog = append(update.ConversionLog,
				fmt.Sprintf("dropped %d features repeated within the file", dropped))
		}
		result.InternalDuplicates = dropped
		if err := jc.Checkpoint(); err != nil {
			return err
		}

		jc.Progress(70, "Checking library for duplicates")
		detection, err := j.Detector.DetectLibrary(ctx, jc.OwnerID, unique)
		if err != nil {
			return err
		}
		if err := jc.Checkpoint(); err != nil {
			return err
		}

		update.Features = make([]types.Feature, len(unique))
		for i, hf := range unique {
			update.Features[i] = hf.Feature
		}
		update.Duplicates = detection.Duplicates
	}

	jc.Progress(90, "Saving features")
	if err := j.Store.Imports().UpdateProcessed(ctx, jc.OwnerID, j.ItemID, update); err != nil {
		return itemError(err)
	}

	result.FeatureCount = len(update.Features)
	result.DuplicateCount = len(update.Duplicates)
	jc.Publish(events.EventItemUpdated, types.ItemEvent{
		ImportItemID:   j.ItemID,
		JobID:          jc.ID,
		Filename:       jc.Filename,
		Status:         models.ImportItemStatusReady.String(),
		FeatureCount:   result.FeatureCount,
		DuplicateCount: result.DuplicateCount,
	})

	summary := fmt.Sprintf("Processed %d features (%d duplicates) in %.1fs",
		result.FeatureCount, result.DuplicateCount, jc.Elapsed().Seconds())
	jc.Complete(summary, result)
	logger.InfoWithFields(summary, fields)
	return nil
}

// Abort marks the item failed when the job is cancelled while still queued
func (j *UploadJob) Abort(jc *JobContext, cause error) {
	j.markItemFailed(jc, cause)
}

// convert runs the converter under the conversion budget. A converter that
// ignores its context is abandoned once the budget is spent.
func (j *UploadJob) convert(ctx context.Context, jc *JobContext) (*geojson.FeatureCollection, []string, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = ConversionTimeout(len(j.Data))
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		fc  *geojson.FeatureCollection
		log []string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		fc, log, err := j.Converter.Convert(cctx, j.Data, jc.Filename)
		done <- outcome{fc: fc, log: log, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err == nil && out.fc == nil:
			return geojson.NewFeatureCollection(), out.log, nil
		case out.err == nil:
			return out.fc, out.log, nil
		case ctx.Err() != nil:
			return nil, nil, ctx.Err()
		case errors.Is(out.err, context.DeadlineExceeded):
			return nil, nil, types.NewPublicError(types.ErrConversionTimeout.Error(), types.ErrConversionTimeout)
		default:
			return nil, nil, types.NewPublicError("file conversion failed: "+out.err.Error(), out.err)
		}
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, types.NewPublicError(types.ErrConversionTimeout.Error(), types.ErrConversionTimeout)
	}
}

// markItemFailed records the failure on the import item. Deleted items and
// jobs cancelled by the user are left as they are.
func (j *UploadJob) markItemFailed(jc *JobContext, cause error) {
	if errors.Is(cause, types.ErrItemGone) {
		return
	}
	msg := types.PublicMessage(cause, GenericFailureMessage)
	if jc.tracker.IsCancelled(jc.ID) || errors.Is(cause, types.ErrCancelled) || errors.Is(cause, context.Canceled) {
		msg = "Cancelled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), itemStatusTimeout)
	defer cancel()
	err := j.Store.Imports().UpdateStatus(ctx, jc.OwnerID, j.ItemID, models.ImportItemStatusFailed, msg)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		logger.WarnWithFields("failed to mark import item as failed", logger.WithFields(jc.LogFields(), map[string]interface{}{
			"item_id": j.ItemID,
			"error":   err.Error(),
		}))
	}
}

// toDomainFeatures converts GeoJSON features, moving unsupported ones to the log
func toDomainFeatures(fc *geojson.FeatureCollection, log []string) ([]types.Feature, []string) {
	features := make([]types.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		f, err := types.FeatureFromGeoJSON(gf)
		if err != nil {
			log = append(log, fmt.Sprintf("feature %d skipped: %v", i, err))
			continue
		}
		features = append(features, f)
	}
	return features, log
}

// itemError maps a missing import item to ErrItemGone
func itemError(err error) error {
	if errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("%w: %v", types.ErrItemGone, err)
	}
	return err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/celestiaorg/geoimport/internal/converter"
	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// ImportConfig configures the import service and the components it owns
type ImportConfig struct {
	MaxUploadBytes int64
	Runner         RunnerConfig
	Tracker        TrackerConfig
	Duplicates     DuplicateConfig
	BBox           BBoxConfig
	Cleanup        CleanupConfig
}

// UploadRequest is a file submitted for import
type UploadRequest struct {
	OwnerID  uint
	Filename string
	Data     []byte
	// ReplacementTargetID makes the upload replace the geometry of an existing feature
	ReplacementTargetID uint
}

// Import is the entry point of the import pipeline. It creates jobs, hands
// them to the runner and answers status and bbox queries.
type Import struct {
	store     ports.Store
	validator ports.FileValidator
	converter ports.FileConverter
	sink      ports.NotificationSink

	tracker  *StatusTracker
	runner   *Runner
	detector *DuplicateDetector
	bbox     *BBoxEngine
	cleanup  *ReplacementCleanupService

	maxUploadBytes int64
}

// NewImport wires the pipeline. The runner's workers start immediately,
// the replacement sweep starts with Start.
func NewImport(store ports.Store, validator ports.FileValidator, conv ports.FileConverter, sink ports.NotificationSink, cfg ImportConfig) *Import {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = converter.DefaultMaxBytes
	}
	tracker := NewStatusTracker(cfg.Tracker)
	return &Import{
		store:          store,
		validator:      validator,
		converter:      conv,
		sink:           sink,
		tracker:        tracker,
		runner:         NewRunner(tracker, sink, cfg.Runner),
		detector:       NewDuplicateDetector(store.Features(), cfg.Duplicates),
		bbox:           NewBBoxEngine(store.Features(), cfg.BBox),
		cleanup:        NewReplacementCleanupService(store.Imports(), cfg.Cleanup),
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Start launches the background sweep of stale replacement uploads
func (s *Import) Start() {
	s.cleanup.Start()
}

// Shutdown stops the sweep and drains the runner
func (s *Import) Shutdown(ctx context.Context) error {
	s.cleanup.Stop()
	return s.runner.Shutdown(ctx)
}

// Tracker returns the job registry
func (s *Import) Tracker() *StatusTracker {
	return s.tracker
}

// StartUpload stages a placeholder import item and queues its upload job
func (s *Import) StartUpload(ctx context.Context, req UploadRequest) (types.UploadResponse, error) {
	if err := models.ValidateOwnerID(req.OwnerID); err != nil {
		return types.UploadResponse{}, types.NewValidationError("owner_id", "%v", err)
	}
	name := filepath.Base(req.Filename)
	switch {
	case len(req.Data) == 0:
		return types.UploadResponse{}, types.NewValidationError("file", "file is empty")
	case int64(len(req.Data)) > s.maxUploadBytes:
		return types.UploadResponse{}, types.NewValidationError("file", "file exceeds the %d MB upload limit", s.maxUploadBytes>>20)
	case !converter.IsSupported(name):
		return types.UploadResponse{}, types.NewValidationError("file", "unsupported file type %q, expected .kml, .kmz or .gpx", converter.Extension(name))
	}

	var target *uint
	if req.ReplacementTargetID != 0 {
		if _, err := s.store.Features().GetByID(ctx, req.OwnerID, req.ReplacementTargetID); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return types.UploadResponse{}, types.NewValidationError("replacement_target_id", "feature %d does not exist", req.ReplacementTargetID)
			}
			return types.UploadResponse{}, err
		}
		id := req.ReplacementTargetID
		target = &id
	}

	jobID := s.tracker.CreateJob(name, req.OwnerID, types.JobKindUpload)
	item := &models.ImportItem{
		OwnerID:             req.OwnerID,
		Filename:            name,
		SourceHash:          types.HashBytes(req.Data),
		SourceSize:          int64(len(req.Data)),
		JobID:               jobID,
		Status:              models.ImportItemStatusPending,
		ReplacementTargetID: target,
	}
	if err := s.store.Imports().Create(ctx, item); err != nil {
		s.tracker.UpdateJobStatus(jobID, types.JobStatusFailed, GenericFailureMessage, WithError(GenericFailureMessage))
		return types.UploadResponse{}, fmt.Errorf("failed to create import item: %w", err)
	}
	s.tracker.UpdateJobStatus(jobID, types.JobStatusUploaded, "Queued", WithImportItem(item.ID))
	s.publish(req.OwnerID, events.EventItemAdded, types.ItemEvent{
		ImportItemID: item.ID,
		JobID:        jobID,
		Filename:     name,
		Status:       item.Status.String(),
	})

	job := &UploadJob{
		ItemID:      item.ID,
		Data:        req.Data,
		Replacement: target != nil,
		Store:       s.store,
		Validator:   s.validator,
		Converter:   s.converter,
		Detector:    s.detector,
	}
	if err := s.runner.Start(jobID, job); err != nil {
		s.rejectUpload(ctx, jobID, item, err)
		return types.UploadResponse{}, err
	}

	logger.InfoWithFields("upload queued", logger.WithFields(logger.JobFields(jobID, req.OwnerID), map[string]interface{}{
		"item_id":  item.ID,
		"filename": name,
		"size":     len(req.Data),
	}))
	return types.UploadResponse{JobID: jobID, ImportItemID: item.ID}, nil
}

// StartDelete queues the deletion of an import item
func (s *Import) StartDelete(ctx context.Context, ownerID, itemID uint) (types.JobResponse, error) {
	item, err := s.store.Imports().Get(ctx, ownerID, itemID)
	if err != nil {
		return types.JobResponse{}, err
	}
	return s.submit(ownerID, item.Filename, types.JobKindDelete, &DeleteJob{ItemID: itemID, Store: s.store})
}

// StartCommit queues the commit of import items into the feature library
func (s *Import) StartCommit(ownerID uint, req types.CommitRequest) (types.JobResponse, error) {
	if err := req.Validate(); err != nil {
		return types.JobResponse{}, err
	}
	return s.submit(ownerID, fmt.Sprintf("commit of %d items", len(req.ItemIDs)), types.JobKindBulkImport, &BulkImportJob{
		ItemIDs:           req.ItemIDs,
		IncludeDuplicates: req.IncludeDuplicates,
		Store:             s.store,
	})
}

// StartBulkDelete queues the deletion of committed features
func (s *Import) StartBulkDelete(ownerID uint, req types.DeleteFeaturesRequest) (types.JobResponse, error) {
	if err := req.Validate(); err != nil {
		return types.JobResponse{}, err
	}
	return s.submit(ownerID, fmt.Sprintf("deletion of %d features", len(req.IDs)), types.JobKindBulkDelete, &BulkDeleteJob{
		FeatureIDs: req.IDs,
		Store:      s.store,
	})
}

// GetStatus returns the owner's job
func (s *Import) GetStatus(ownerID uint, jobID string) (types.JobSnapshot, error) {
	snapshot, ok := s.tracker.GetJob(jobID)
	if !ok || snapshot.OwnerID != ownerID {
		return types.JobSnapshot{}, types.ErrJobNotFound
	}
	return snapshot, nil
}

// ListJobs returns the owner's jobs, newest first
func (s *Import) ListJobs(ownerID uint) []types.JobSnapshot {
	return s.tracker.GetUserJobs(ownerID)
}

// Cancel cancels the owner's job
func (s *Import) Cancel(ownerID uint, jobID string) (types.CancelResponse, error) {
	if _, err := s.GetStatus(ownerID, jobID); err != nil {
		return types.CancelResponse{}, err
	}
	err := s.runner.Cancel(jobID)
	switch {
	case errors.Is(err, types.ErrJobFinished):
		return types.CancelResponse{JobID: jobID, Cancelled: false}, nil
	case err != nil:
		return types.CancelResponse{}, err
	}
	logger.InfoWithFields("job cancelled by user", logger.JobFields(jobID, ownerID))
	return types.CancelResponse{JobID: jobID, Cancelled: true}, nil
}

// QueryBBox returns the owner's features in the viewport
func (s *Import) QueryBBox(ctx context.Context, ownerID uint, q types.BBoxQuery) (*BBoxResult, error) {
	return s.bbox.Query(ctx, ownerID, q)
}

// CreateCollection stores a named collection. Listed features must belong to the owner.
func (s *Import) CreateCollection(ctx context.Context, ownerID uint, req types.CreateCollectionRequest) (*models.Collection, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, types.NewValidationError("owner_id", "%v", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, id := range req.FeatureIDs {
		if _, err := s.store.Features().GetByID(ctx, ownerID, id); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, types.NewValidationError("feature_ids", "feature %d does not exist", id)
			}
			return nil, err
		}
	}

	collection, err := models.NewCollection(ownerID, strings.TrimSpace(req.Name), req.Tags, req.FeatureIDs)
	if err != nil {
		return nil, err
	}
	if err := s.store.Features().CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	logger.InfoWithFields("collection created", map[string]interface{}{
		"owner_id":      ownerID,
		"collection_id": collection.ID,
		"name":          collection.Name,
	})
	return collection, nil
}

// ListItems returns the owner's import items without their staged features
func (s *Import) ListItems(ctx context.Context, ownerID uint, status models.ImportItemStatus, opts *models.ListOptions) ([]models.ImportItem, error) {
	return s.store.Imports().List(ctx, ownerID, status, opts)
}

// GetItem returns one import item with its staged features
func (s *Import) GetItem(ctx context.Context, ownerID, itemID uint) (*models.ImportItem, error) {
	return s.store.Imports().Get(ctx, ownerID, itemID)
}

func (s *Import) submit(ownerID uint, label string, kind types.JobKind, job Job) (types.JobResponse, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return types.JobResponse{}, types.NewValidationError("owner_id", "%v", err)
	}
	jobID := s.tracker.CreateJob(label, ownerID, kind)
	if err := s.runner.Start(jobID, job); err != nil {
		s.tracker.UpdateJobStatus(jobID, types.JobStatusFailed, err.Error(), WithError(err.Error()))
		return types.JobResponse{}, err
	}
	logger.InfoWithFields(fmt.Sprintf("%s job queued", kind), logger.JobFields(jobID, ownerID))
	return types.JobResponse{JobID: jobID}, nil
}

// rejectUpload fails the job and its placeholder when the runner refuses the upload
func (s *Import) rejectUpload(ctx context.Context, jobID string, item *models.ImportItem, cause error) {
	s.tracker.UpdateJobStatus(jobID, types.JobStatusFailed, cause.Error(), WithError(cause.Error()))
	if err := s.store.Imports().UpdateStatus(ctx, item.OwnerID, item.ID, models.ImportItemStatusFailed, cause.Error()); err != nil {
		logger.WarnWithFields("failed to mark rejected upload", logger.WithFields(logger.JobFields(jobID, item.OwnerID), map[string]interface{}{
			"item_id": item.ID,
			"error":   err.Error(),
		}))
	}
	s.publish(item.OwnerID, events.EventItemUpdated, types.ItemEvent{
		ImportItemID: item.ID,
		JobID:        jobID,
		Filename:     item.Filename,
		Status:       models.ImportItemStatusFailed.String(),
	})
}

func (s *Import) publish(ownerID uint, eventType events.EventType, payload interface{}) {
	if s.sink != nil {
		s.sink.Publish(ownerID, eventType, payload)
	}
}

package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Tracker defaults
const (
	DefaultJobMaxAge          = 2 * time.Hour
	DefaultJobCleanupInterval = time.Hour
)

// TrackerConfig configures job retention
type TrackerConfig struct {
	// MaxAge is how long a finished job stays queryable
	MaxAge time.Duration
	// CleanupInterval is the minimum time between two compactions
	CleanupInterval time.Duration
	// Now is the clock, replaced in tests
	Now func() time.Time
}

// StatusTracker is the in-memory registry of job lifecycles
type StatusTracker struct {
	mu          sync.RWMutex
	jobs        map[string]*types.Job
	lastCleanup time.Time
	maxAge      time.Duration
	interval    time.Duration
	now         func() time.Time
}

// UpdateOption sets optional fields during a status update
type UpdateOption func(*types.Job)

// WithProgress sets the progress percentage, clamped to 0..100
func WithProgress(progress int) UpdateOption {
	return func(j *types.Job) {
		switch {
		case progress < 0:
			progress = 0
		case progress > 100:
			progress = 100
		}
		j.Progress = progress
	}
}

// WithError records the user-facing error message
func WithError(msg string) UpdateOption {
	return func(j *types.Job) {
		j.Error = msg
	}
}

// WithResult attaches a result payload
func WithResult(result interface{}) UpdateOption {
	return func(j *types.Job) {
		j.Result = result
	}
}

// WithImportItem links the job to an import item
func WithImportItem(id uint) UpdateOption {
	return func(j *types.Job) {
		j.ImportItemID = id
	}
}

// NewStatusTracker creates a tracker
func NewStatusTracker(cfg TrackerConfig) *StatusTracker {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultJobMaxAge
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultJobCleanupInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &StatusTracker{
		jobs:        make(map[string]*types.Job),
		lastCleanup: cfg.Now(),
		maxAge:      cfg.MaxAge,
		interval:    cfg.CleanupInterval,
		now:         cfg.Now,
	}
}

// CreateJob registers a new job in the UPLOADED state and returns its ID.
// Finished jobs older than the max age are compacted at most once per interval.
func (t *StatusTracker) CreateJob(filename string, ownerID uint, kind types.JobKind) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastCleanup) >= t.interval {
		t.compactLocked(now)
		t.lastCleanup = now
	}

	id := uuid.NewString()
	t.jobs[id] = &types.Job{
		ID:        id,
		Filename:  filename,
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    types.JobStatusUploaded,
		CreatedAt: now,
	}
	return id
}

// UpdateJobStatus moves a job to status. It returns false when the job is
// unknown, already finished, or the transition is not allowed.
func (t *StatusTracker) UpdateJobStatus(id string, status types.JobStatus, message string, opts ...UpdateOption) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return false
	}
	if !job.Status.CanTransitionTo(status) {
		if !job.Status.IsTerminal() {
			logger.WarnWithFields("rejected job status transition", logger.WithFields(
				logger.JobFields(id, job.OwnerID),
				map[string]interface{}{"from": job.Status.String(), "to": status.String()},
			))
		}
		return false
	}

	now := t.now()
	job.Status = status
	if message != "" {
		job.Message = message
	}
	for _, opt := range opts {
		opt(job)
	}
	if status == types.JobStatusProcessing && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.IsTerminal() {
		job.CompletedAt = &now
		if status == types.JobStatusCompleted {
			job.Progress = 100
		}
	}
	return true
}

// CancelJob marks a job CANCELLED unless it already finished
func (t *StatusTracker) CancelJob(id string) bool {
	return t.UpdateJobStatus(id, types.JobStatusCancelled, "Cancelled by user")
}

// GetJob returns a snapshot of the job
func (t *StatusTracker) GetJob(id string) (types.JobSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return types.JobSnapshot{}, false
	}
	return job.Snapshot(), true
}

// GetJobStatus returns the current status of the job
func (t *StatusTracker) GetJobStatus(id string) (types.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return types.JobStatusUnknown, false
	}
	return job.Status, true
}

// GetUserJobs returns the owner's jobs, newest first
func (t *StatusTracker) GetUserJobs(ownerID uint) []types.JobSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs := make([]types.JobSnapshot, 0)
	for _, job := range t.jobs {
		if job.OwnerID == ownerID {
			jobs = append(jobs, job.Snapshot())
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// IsCancelled reports whether the job was cancelled. Unknown jobs count as
// cancelled so their workers stop.
func (t *StatusTracker) IsCancelled(id string) bool {
	status, ok := t.GetJobStatus(id)
	return !ok || status == types.JobStatusCancelled
}

// size returns the number of tracked jobs
func (t *StatusTracker) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

func (t *StatusTracker) compactLocked(now time.Time) {
	removed := 0
	for id, job := range t.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil {
			continue
		}
		if now.Sub(*job.CompletedAt) > t.maxAge {
			delete(t.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Debugf("Removed %d finished jobs from the tracker", removed)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
	"github.com/celestiaorg/geoimport/internal/types"
)

// Runner defaults
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 128

	// GenericFailureMessage is shown to users when a job fails for an internal reason
	GenericFailureMessage = "internal error while processing job"
	// ItemGoneMessage is shown when the import item was deleted while its job ran
	ItemGoneMessage = "Import item deleted during processing"
)

// Job is a unit of background work executed by the Runner
type Job interface {
	Run(ctx context.Context, jc *JobContext) error
}

// Aborter is implemented by jobs that hold external state which must be
// settled when the job is cancelled before it ever runs
type Aborter interface {
	Abort(jc *JobContext, cause error)
}

// JobFunc adapts a function to the Job interface
type JobFunc func(ctx context.Context, jc *JobContext) error

// Run calls f
func (f JobFunc) Run(ctx context.Context, jc *JobContext) error {
	return f(ctx, jc)
}

// RunnerConfig sizes the worker pool
type RunnerConfig struct {
	Workers   int
	QueueSize int
}

type task struct {
	id  string
	job Job
	ctx context.Context
}

// Runner executes jobs on a bounded pool of workers. At most one worker is
// registered per job ID at any time.
type Runner struct {
	tracker *StatusTracker
	sink    ports.NotificationSink

	tasks chan task
	wg    sync.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewRunner creates a runner and launches its workers
func NewRunner(tracker *StatusTracker, sink ports.NotificationSink, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		tracker:    tracker,
		sink:       sink,
		tasks:      make(chan task, cfg.QueueSize),
		active:     make(map[string]context.CancelFunc),
		baseCtx:    ctx,
		baseCancel: cancel,
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.launchWorker(i)
	}
	logger.Infof("Job runner started with %d workers", cfg.Workers)
	return r
}

// Start queues job for execution under jobID. The job must exist in the
// tracker and must not be finished or already registered.
func (r *Runner) Start(jobID string, job Job) error {
	status, ok := r.tracker.GetJobStatus(jobID)
	if !ok {
		return types.ErrJobNotFound
	}
	if status.IsTerminal() {
		return types.ErrJobFinished
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.ErrRunnerClosed
	}
	if _, running := r.active[jobID]; running {
		return types.ErrJobAlreadyRunning
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	r.active[jobID] = cancel
	select {
	case r.tasks <- task{id: jobID, job: job, ctx: ctx}:
		return nil
	default:
		delete(r.active, jobID)
		cancel()
		return types.ErrQueueFull
	}
}

// Cancel marks the job cancelled and interrupts its worker
func (r *Runner) Cancel(jobID string) error {
	if !r.tracker.CancelJob(jobID) {
		if _, ok := r.tracker.GetJobStatus(jobID); !ok {
			return types.ErrJobNotFound
		}
		return types.ErrJobFinished
	}
	r.publishStatus(jobID)

	r.mu.Lock()
	cancel, ok := r.active[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// isActive reports whether a worker is registered for the job
func (r *Runner) isActive(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[jobID]
	return ok
}

// activeCount returns the number of registered jobs, queued or running
func (r *Runner) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Shutdown stops accepting jobs, cancels outstanding ones and waits for the
// workers to drain the queue or for ctx to expire
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, cancel := range r.active {
		cancel()
	}
	close(r.tasks)
	r.mu.Unlock()
	r.baseCancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Job runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job runner did not stop in time: %w", ctx.Err())
	}
}

// launchWorker consumes tasks until the queue is closed
func (r *Runner) launchWorker(n int) {
	defer r.wg.Done()
	logger.Debugf("Worker %d started", n)

	for t := range r.tasks {
		r.execute(t)
	}
	logger.Debugf("Worker %d stopped", n)
}

func (r *Runner) execute(t task) {
	defer r.deregister(t.id)

	snapshot, ok := r.tracker.GetJob(t.id)
	if !ok {
		return
	}
	jc := &JobContext{
		ID:       t.id,
		OwnerID:  snapshot.OwnerID,
		Filename: snapshot.Filename,
		ctx:      t.ctx,
		tracker:  r.tracker,
		sink:     r.sink,
		started:  time.Now(),
	}

	if err := jc.Checkpoint(); err != nil {
		if a, ok := t.job.(Aborter); ok {
			a.Abort(jc, err)
		}
		r.finish(jc, err)
		return
	}
	r.finish(jc, r.safeRun(t, jc))
}

func (r *Runner) safeRun(t task, jc *JobContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return t.job.Run(t.ctx, jc)
}

// finish records the outcome of a job. Cancellation wins over any error the
// job returned.
func (r *Runner) finish(jc *JobContext, err error) {
	fields := logger.JobFields(jc.ID, jc.OwnerID)

	switch {
	case err == nil:
		status, _ := r.tracker.GetJobStatus(jc.ID)
		if status == types.JobStatusUploaded {
			jc.Update(types.JobStatusProcessing, "")
		}
		if !status.IsTerminal() {
			jc.Complete("Completed", nil)
		}
	case r.tracker.IsCancelled(jc.ID) || errors.Is(err, types.ErrCancelled) || errors.Is(err, context.Canceled):
		if r.tracker.UpdateJobStatus(jc.ID, types.JobStatusCancelled, "Cancelled") {
			r.publishStatus(jc.ID)
		}
		logger.InfoWithFields("job cancelled", fields)
	case errors.Is(err, types.ErrItemGone):
		if r.tracker.UpdateJobStatus(jc.ID, types.JobStatusCancelled, ItemGoneMessage) {
			r.publishStatus(jc.ID)
		}
		logger.InfoWithFields("import item deleted while job was running", fields)
	default:
		msg := types.PublicMessage(err, GenericFailureMessage)
		if r.tracker.UpdateJobStatus(jc.ID, types.JobStatusFailed, msg, WithError(msg)) {
			r.publishStatus(jc.ID)
		}
		logger.ErrorWithFields("job failed", logger.WithFields(fields, map[string]interface{}{"error": err.Error()}))
	}
}

func (r *Runner) deregister(jobID string) {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	delete(r.active, jobID)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

func (r *Runner) publishStatus(jobID string) {
	if r.sink == nil {
		return
	}
	if snapshot, ok := r.tracker.GetJob(jobID); ok {
		r.sink.Publish(snapshot.OwnerID, events.EventJobStatus, snapshot)
	}
}

// JobContext is handed to a running job to report progress and observe cancellation
type JobContext struct {
	ID       string
	OwnerID  uint
	Filename string

	ctx     context.Context
	tracker *StatusTracker
	sink    ports.NotificationSink
	started time.Time
}

// Checkpoint returns types.ErrCancelled once the job was cancelled or its
// context ended. Jobs call it between stages.
func (jc *JobContext) Checkpoint() error {
	if jc.tracker.IsCancelled(jc.ID) || jc.ctx.Err() != nil {
		return types.ErrCancelled
	}
	return nil
}

// Progress reports progress while the job is processing
func (jc *JobContext) Progress(progress int, message string) bool {
	return jc.Update(types.JobStatusProcessing, message, WithProgress(progress))
}

// Update changes the job status and publishes the new state
func (jc *JobContext) Update(status types.JobStatus, message string, opts ...UpdateOption) bool {
	if !jc.tracker.UpdateJobStatus(jc.ID, status, message, opts...) {
		return false
	}
	jc.publishStatus()
	return true
}

// Complete marks the job COMPLETED with a summary and result
func (jc *JobContext) Complete(message string, result interface{}) bool {
	return jc.Update(types.JobStatusCompleted, message, WithProgress(100), WithResult(result))
}

// Publish forwards an event for the job owner to the notification sink
func (jc *JobContext) Publish(eventType events.EventType, payload interface{}) {
	if jc.sink != nil {
		jc.sink.Publish(jc.OwnerID, eventType, payload)
	}
}

// Elapsed returns the time since the worker picked the job up
func (jc *JobContext) Elapsed() time.Duration {
	return time.Since(jc.started)
}

// LogFields returns the standard log fields of the job
func (jc *JobContext) LogFields() map[string]interface{} {
	return logger.JobFields(jc.ID, jc.OwnerID)
}

func (jc *JobContext) publishStatus() {
	if jc.sink == nil {
		return
	}
	if snapshot, ok := jc.tracker.GetJob(jc.ID); ok {
		jc.sink.Publish(jc.OwnerID, events.EventJobStatus, snapshot)
	}
}

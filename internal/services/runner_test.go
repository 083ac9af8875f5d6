package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/geoimport/internal/events"
	"github.com/celestiaorg/geoimport/internal/types"
)

func newTestRunner(t *testing.T, cfg RunnerConfig) (*Runner, *StatusTracker, *recordingSink) {
	t.Helper()
	tracker := NewStatusTracker(TrackerConfig{})
	sink := &recordingSink{}
	runner := NewRunner(tracker, sink, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})
	return runner, tracker, sink
}

// blockingJob runs until released or cancelled
type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func newBlockingJob() *blockingJob {
	return &blockingJob{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (j *blockingJob) Run(ctx context.Context, jc *JobContext) error {
	j.runs.Add(1)
	jc.Progress(10, "working")
	j.started <- struct{}{}
	select {
	case <-j.release:
		return nil
	case <-ctx.Done():
		return jc.Checkpoint()
	}
}

func TestRunner_CompletesJob(t *testing.T) {
	runner, tracker, sink := newTestRunner(t, RunnerConfig{Workers: 2})

	id := tracker.CreateJob("a.kml", 3, types.JobKindUpload)
	require.NoError(t, runner.Start(id, JobFunc(func(_ context.Context, jc *JobContext) error {
		assert.Equal(t, uint(3), jc.OwnerID)
		assert.Equal(t, "a.kml", jc.Filename)
		jc.Progress(50, "halfway")
		return nil
	})))

	job := waitForTerminal(t, tracker, id)
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.Eventually(t, func() bool { return !runner.isActive(id) }, waitFor, tick)

	statuses := sink.ofType(events.EventJobStatus)
	require.NotEmpty(t, statuses)
	last := statuses[len(statuses)-1].Payload.(types.JobSnapshot)
	assert.Equal(t, types.JobStatusCompleted, last.Status)
	assert.Equal(t, uint(3), statuses[0].OwnerID)
}

func TestRunner_AtMostOneWorkerPerJob(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 4})
	job := newBlockingJob()

	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, job))
	assert.ErrorIs(t, runner.Start(id, job), types.ErrJobAlreadyRunning)

	<-job.started
	assert.ErrorIs(t, runner.Start(id, job), types.ErrJobAlreadyRunning)
	assert.Equal(t, 1, runner.activeCount())

	close(job.release)
	waitForTerminal(t, tracker, id)
	assert.Equal(t, int32(1), job.runs.Load())
	assert.ErrorIs(t, runner.Start(id, job), types.ErrJobFinished)
}

func TestRunner_StartRejectsUnknownJob(t *testing.T) {
	runner, _, _ := newTestRunner(t, RunnerConfig{})
	assert.ErrorIs(t, runner.Start("missing", JobFunc(func(context.Context, *JobContext) error { return nil })), types.ErrJobNotFound)
}

func TestRunner_QueueFull(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 1, QueueSize: 1})
	running := newBlockingJob()
	queued := newBlockingJob()

	first := tracker.CreateJob("1.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(first, running))
	<-running.started

	second := tracker.CreateJob("2.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(second, queued))

	third := tracker.CreateJob("3.kml", 1, types.JobKindUpload)
	assert.ErrorIs(t, runner.Start(third, newBlockingJob()), types.ErrQueueFull)
	assert.False(t, runner.isActive(third))

	close(running.release)
	close(queued.release)
	assert.Equal(t, types.JobStatusCompleted, waitForTerminal(t, tracker, first).Status)
	assert.Equal(t, types.JobStatusCompleted, waitForTerminal(t, tracker, second).Status)
}

func TestRunner_Cancel(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{})
	job := newBlockingJob()

	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, job))
	<-job.started

	require.NoError(t, runner.Cancel(id))
	snapshot := waitForTerminal(t, tracker, id)
	assert.Equal(t, types.JobStatusCancelled, snapshot.Status)
	assert.Equal(t, "Cancelled by user", snapshot.Message)
	require.Eventually(t, func() bool { return runner.activeCount() == 0 }, waitFor, tick)

	assert.ErrorIs(t, runner.Cancel(id), types.ErrJobFinished)
	assert.ErrorIs(t, runner.Cancel("missing"), types.ErrJobNotFound)
}

func TestRunner_CancelledBeforePickup(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 1})
	blocker := newBlockingJob()

	first := tracker.CreateJob("1.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(first, blocker))
	<-blocker.started

	var ran atomic.Bool
	second := tracker.CreateJob("2.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(second, JobFunc(func(context.Context, *JobContext) error {
		ran.Store(true)
		return nil
	})))
	require.NoError(t, runner.Cancel(second))

	close(blocker.release)
	waitForTerminal(t, tracker, first)
	require.Eventually(t, func() bool { return runner.activeCount() == 0 }, waitFor, tick)
	assert.False(t, ran.Load(), "a job cancelled while queued never runs")
	status, _ := tracker.GetJobStatus(second)
	assert.Equal(t, types.JobStatusCancelled, status)
}

// abortingJob records the cause it was aborted with
type abortingJob struct {
	aborted chan error
}

func (j *abortingJob) Run(context.Context, *JobContext) error { return nil }

func (j *abortingJob) Abort(_ *JobContext, cause error) { j.aborted <- cause }

func TestRunner_AbortsJobCancelledWhileQueued(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 1})
	blocker := newBlockingJob()

	first := tracker.CreateJob("1.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(first, blocker))
	<-blocker.started

	queued := &abortingJob{aborted: make(chan error, 1)}
	second := tracker.CreateJob("2.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(second, queued))
	require.NoError(t, runner.Cancel(second))
	close(blocker.release)

	select {
	case cause := <-queued.aborted:
		assert.ErrorIs(t, cause, types.ErrCancelled)
	case <-time.After(waitFor):
		t.Fatal("queued job was not aborted")
	}
	status, _ := tracker.GetJobStatus(second)
	assert.Equal(t, types.JobStatusCancelled, status)
}

func TestRunner_CompletedJobIsNotAborted(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 1})

	job := &abortingJob{aborted: make(chan error, 1)}
	id := tracker.CreateJob("1.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, job))

	assert.Equal(t, types.JobStatusCompleted, waitForTerminal(t, tracker, id).Status)
	assert.Empty(t, job.aborted)
}

func TestRunner_FailureMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "internal errors are hidden",
			err:     fmt.Errorf("query failed: %w", errors.New("connection reset by peer")),
			message: GenericFailureMessage,
		},
		{
			name:    "public errors are shown",
			err:     types.NewPublicError("file conversion failed: bad xml", errors.New("xml: syntax error")),
			message: "file conversion failed: bad xml",
		},
		{
			name:    "validation errors are shown",
			err:     types.NewValidationError("file", "file is empty"),
			message: "file: file is empty",
		},
		{
			name:    "timeouts are shown",
			err:     types.NewPublicError(types.ErrConversionTimeout.Error(), types.ErrConversionTimeout),
			message: "processing timed out",
		},
	}

	runner, tracker, _ := newTestRunner(t, RunnerConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.err
			id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
			require.NoError(t, runner.Start(id, JobFunc(func(_ context.Context, jc *JobContext) error {
				jc.Progress(40, "converting")
				return err
			})))

			job := waitForTerminal(t, tracker, id)
			assert.Equal(t, types.JobStatusFailed, job.Status)
			assert.Equal(t, tt.message, job.Error)
			assert.Equal(t, tt.message, job.Message)
		})
	}
}

func TestRunner_ItemGone(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{})

	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, JobFunc(func(context.Context, *JobContext) error {
		return fmt.Errorf("%w: import item 4", types.ErrItemGone)
	})))

	job := waitForTerminal(t, tracker, id)
	assert.Equal(t, types.JobStatusCancelled, job.Status)
	assert.Equal(t, ItemGoneMessage, job.Message)
	assert.Empty(t, job.Error)
}

func TestRunner_RecoversPanics(t *testing.T) {
	runner, tracker, _ := newTestRunner(t, RunnerConfig{Workers: 1})

	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, JobFunc(func(context.Context, *JobContext) error {
		panic("nil map")
	})))
	job := waitForTerminal(t, tracker, id)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, GenericFailureMessage, job.Error)

	// the worker survives the panic
	next := tracker.CreateJob("b.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(next, JobFunc(func(context.Context, *JobContext) error { return nil })))
	assert.Equal(t, types.JobStatusCompleted, waitForTerminal(t, tracker, next).Status)
}

func TestRunner_Shutdown(t *testing.T) {
	tracker := NewStatusTracker(TrackerConfig{})
	runner := NewRunner(tracker, nil, RunnerConfig{Workers: 1})
	job := newBlockingJob()

	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	require.NoError(t, runner.Start(id, job))
	<-job.started

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, runner.Shutdown(ctx))
	require.NoError(t, runner.Shutdown(ctx), "shutdown is idempotent")

	assert.Equal(t, types.JobStatusCancelled, waitForTerminal(t, tracker, id).Status)
	assert.Equal(t, 0, runner.activeCount())

	other := tracker.CreateJob("b.kml", 1, types.JobKindUpload)
	assert.ErrorIs(t, runner.Start(other, job), types.ErrRunnerClosed)
}

func TestJobContext_Checkpoint(t *testing.T) {
	tracker := NewStatusTracker(TrackerConfig{})
	id := tracker.CreateJob("a.kml", 1, types.JobKindUpload)
	ctx, cancel := context.WithCancel(context.Background())
	jc := &JobContext{ID: id, OwnerID: 1, ctx: ctx, tracker: tracker, started: time.Now()}

	require.NoError(t, jc.Checkpoint())
	cancel()
	assert.ErrorIs(t, jc.Checkpoint(), types.ErrCancelled)

	other := tracker.CreateJob("b.kml", 1, types.JobKindUpload)
	jc = &JobContext{ID: other, OwnerID: 1, ctx: context.Background(), tracker: tracker, started: time.Now()}
	require.True(t, tracker.CancelJob(other))
	assert.ErrorIs(t, jc.Checkpoint(), types.ErrCancelled)
}

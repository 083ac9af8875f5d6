package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      JobStatus
		stringValue string
		terminal    bool
	}{
		{name: "Unknown status", status: JobStatusUnknown, stringValue: "unknown"},
		{name: "Uploaded status", status: JobStatusUploaded, stringValue: "uploaded"},
		{name: "Processing status", status: JobStatusProcessing, stringValue: "processing"},
		{name: "Completed status", status: JobStatusCompleted, stringValue: "completed", terminal: true},
		{name: "Failed status", status: JobStatusFailed, stringValue: "failed", terminal: true},
		{name: "Cancelled status", status: JobStatusCancelled, stringValue: "cancelled", terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stringValue, tt.status.String())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())

			parsed, err := ParseJobStatus(tt.stringValue)
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)

			data, err := json.Marshal(tt.status)
			require.NoError(t, err)
			assert.Equal(t, `"`+tt.stringValue+`"`, string(data))

			var decoded JobStatus
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.status, decoded)
		})
	}

	t.Run("Invalid status", func(t *testing.T) {
		_, err := ParseJobStatus("running")
		assert.Error(t, err)
		assert.Equal(t, "unknown", JobStatus(42).String())
	})
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	allowed := map[JobStatus][]JobStatus{
		JobStatusUploaded:   {JobStatusUploaded, JobStatusProcessing, JobStatusFailed, JobStatusCancelled},
		JobStatusProcessing: {JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
		JobStatusCompleted:  nil,
		JobStatusFailed:     nil,
		JobStatusCancelled:  nil,
	}
	all := []JobStatus{JobStatusUploaded, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

	for from, targets := range allowed {
		for _, to := range all {
			expected := false
			for _, target := range targets {
				if target == to {
					expected = true
				}
			}
			assert.Equal(t, expected, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestJob_Snapshot(t *testing.T) {
	job := &Job{ID: "abc", OwnerID: 7, Kind: JobKindUpload, Status: JobStatusProcessing, Progress: 40}
	snap := job.Snapshot()
	assert.Equal(t, "abc", snap.ID)
	assert.Equal(t, uint(7), snap.OwnerID)
	assert.Equal(t, 40, snap.Progress)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"processing"`)
	assert.Contains(t, string(data), `"job_id":"abc"`)
}

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a background job
type JobStatus int

// Job status constants
const (
	// JobStatusUnknown represents an unknown or invalid job status
	JobStatusUnknown JobStatus = iota
	// JobStatusUploaded indicates the job was accepted but no worker has started real work yet
	JobStatusUploaded
	// JobStatusProcessing indicates a worker is executing the job
	JobStatusProcessing
	// JobStatusCompleted indicates the job has finished successfully
	JobStatusCompleted
	// JobStatusFailed indicates the job has failed to complete
	JobStatusFailed
	// JobStatusCancelled indicates the job was cancelled by its owner or by shutdown
	JobStatusCancelled
)

var jobStatusNames = []string{
	"unknown",
	"uploaded",
	"processing",
	"completed",
	"failed",
	"cancelled",
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for i, status := range jobStatusNames {
		if status == str {
			return JobStatus(i), nil
		}
	}
	return JobStatusUnknown, fmt.Errorf("invalid job status: %s", str)
}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return jobStatusNames[JobStatusUnknown]
	}
	return jobStatusNames[s]
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// IsTerminal reports whether no further transitions are allowed from s
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Re-entering the current non-terminal state is allowed so workers can refresh
// progress and message.
//
//	uploaded   -> uploaded | processing | failed | cancelled
//	processing -> processing | completed | failed | cancelled
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusUploaded:
		return next == JobStatusUploaded || next == JobStatusProcessing ||
			next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusCompleted ||
			next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// JobKind identifies what a job does
type JobKind string

// Job kinds
const (
	JobKindUpload     JobKind = "upload"
	JobKindDelete     JobKind = "delete"
	JobKindBulkImport JobKind = "bulk_import"
	JobKindBulkDelete JobKind = "bulk_delete"
)

// Job is the in-memory record of a background job
type Job struct {
	ID           string
	Filename     string
	OwnerID      uint
	Kind         JobKind
	Status       JobStatus
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Progress     int
	Message      string
	Error        string
	Result       interface{}
	ImportItemID uint
}

// JobSnapshot is the serializable view of a job handed to callers
type JobSnapshot struct {
	ID           string      `json:"job_id"`
	Filename     string      `json:"filename"`
	OwnerID      uint        `json:"owner_id"`
	Kind         JobKind     `json:"kind"`
	Status       JobStatus   `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Progress     int         `json:"progress"`
	Message      string      `json:"message,omitempty"`
	Error        string      `json:"error,omitempty"`
	Result       interface{} `json:"result,omitempty"`
	ImportItemID uint        `json:"import_item_id,omitempty"`
}

// Snapshot copies the job into its serializable form
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:           j.ID,
		Filename:     j.Filename,
		OwnerID:      j.OwnerID,
		Kind:         j.Kind,
		Status:       j.Status,
		CreatedAt:    j.CreatedAt,
		StartedAt:    copyTime(j.StartedAt),
		CompletedAt:  copyTime(j.CompletedAt),
		Progress:     j.Progress,
		Message:      j.Message,
		Error:        j.Error,
		Result:       j.Result,
		ImportItemID: j.ImportItemID,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

package state

import "time"

// Status is the derived outcome of a processing run. It is never stored
// independently of the step flags: completed if and only if every step
// succeeded, failed otherwise.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StatusFor derives the record status from the step flags.
func StatusFor(steps Steps) Status {
	if steps.Completed() {
		return StatusCompleted
	}
	return StatusFailed
}

// Record is the persisted outcome of the most recent processing run for one
// video. Reprocessing a video replaces the whole record.
type Record struct {
	Title       string    `json:"title,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	Status      Status    `json:"status"`
	Steps       Steps     `json:"steps"`
	Error       string    `json:"error,omitempty"`
}

// Completed reports whether the record's run finished every step.
func (r Record) Completed() bool {
	return r.Status == StatusCompleted
}

// Entry pairs a video ID with its record for callers that need both.
type Entry struct {
	VideoID string
	Record  Record
}

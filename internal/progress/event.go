// Package progress defines the event structures emitted by the orchestrator
// as queries move through the pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart    Stage = "JOB_START"
	StageJobDone     Stage = "JOB_DONE"
	StageJobError    Stage = "JOB_ERROR"
	StageJobCanceled Stage = "JOB_CANCELED"
	StageBatchDone   Stage = "BATCH_DONE"
)

// Event captures a single milestone in a job's lifecycle.
type Event struct {
	// JobID identifies the job, in its string UUID form.
	JobID string
	// ParentID is set for children of a bulk batch.
	ParentID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Query is the submitted query text, for log sinks.
	Query string
	// Results counts ranked results attached at completion.
	Results int
	// Dur captures wall time from processing start to the terminal state.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobCanceled, StageBatchDone:
	case StageJobError:
		if e.Note == "" {
			return errors.New("job error requires a note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

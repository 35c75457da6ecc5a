package domain

import (
	"time"

	"github.com/mrz1836/scribe/internal/constants"
)

// FallbackTransition records one state change of the fallback controller.
type FallbackTransition struct {
	From      constants.FallbackState `json:"from"`
	To        constants.FallbackState `json:"to"`
	Timestamp time.Time               `json:"timestamp"`
	Reason    string                  `json:"reason,omitempty"`
}

// StageOutcome is the Result-style outcome of a stage event.
type StageOutcome string

// Stage outcome constants.
const (
	OutcomeOK      StageOutcome = "ok"
	OutcomeWarning StageOutcome = "warning"
	OutcomeFailed  StageOutcome = "failed"
	OutcomeSkipped StageOutcome = "skipped"
)

// StageEvent is one entry of a run's history. Diagnostic lookups that fail
// without aborting the run land here as warnings instead of being dropped.
type StageEvent struct {
	Stage      constants.StageName `json:"stage"`
	Outcome    StageOutcome        `json:"outcome"`
	Message    string              `json:"message"`
	Error      string              `json:"error,omitempty"`
	DurationMs int64               `json:"duration_ms,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// RecordSummary points at the current compilation record of a run.
type RecordSummary struct {
	Path     string                      `json:"path"`
	Entries  int                         `json:"entries"`
	Strategy constants.RecordingStrategy `json:"strategy"`
}

// PipelineRun is the top-level aggregate of one pipeline execution.
type PipelineRun struct {
	ID            string              `json:"id"`
	SchemaVersion string              `json:"schema_version"`
	Project       string              `json:"project"`
	Jobs          int                 `json:"jobs"`
	OutDir        string              `json:"out_dir"`
	Status        constants.RunStatus `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`

	SnapshotPath string `json:"snapshot_path,omitempty"`

	Attempts            []BuildAttempt          `json:"attempts"`
	FallbackState       constants.FallbackState `json:"fallback_state,omitempty"`
	FallbackTransitions []FallbackTransition    `json:"fallback_transitions,omitempty"`

	// Record is the current compilation record; at most one per run.
	Record *RecordSummary `json:"record,omitempty"`

	Index *IndexDatabase `json:"index,omitempty"`

	Artifacts []Artifact     `json:"artifacts"`
	Queries   []QueryOutcome `json:"queries"`
	History   []StageEvent   `json:"history"`

	// BuildOutputsPreserved is true when the gate build succeeded but a later
	// stage failed; the project's build outputs were left in place.
	BuildOutputsPreserved bool `json:"build_outputs_preserved,omitempty"`

	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the run reached the succeeded terminal status.
func (r *PipelineRun) Succeeded() bool {
	return r.Status == constants.RunStatusSucceeded
}

// FailedQueries returns the outcomes of queries that did not produce an artifact.
func (r *PipelineRun) FailedQueries() []QueryOutcome {
	var failed []QueryOutcome
	for _, q := range r.Queries {
		if !q.Success {
			failed = append(failed, q)
		}
	}
	return failed
}

package domain

import (
	"time"

	"github.com/mrz1836/scribe/internal/constants"
)

// BuildAttempt is one execution of the target project's build.
// It is immutable after completion and owned by the run that created it.
type BuildAttempt struct {
	// Mode is uninstrumented for the gate, instrumented otherwise.
	Mode constants.BuildMode `json:"mode"`

	// Strategy is the recording strategy used (direct for the gate).
	Strategy constants.RecordingStrategy `json:"strategy"`

	// Command is the argv that was executed.
	Command []string `json:"command"`

	Success     bool      `json:"success"`
	ExitCode    int       `json:"exit_code"`
	TimedOut    bool      `json:"timed_out,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// RecordPath is set only for instrumented attempts that produced a record file.
	RecordPath string `json:"record_path,omitempty"`

	// RecordEntries is the number of compiler invocations in the record.
	RecordEntries int `json:"record_entries,omitempty"`

	// Stderr holds the tail of the build's standard error for post-mortem.
	Stderr string `json:"stderr,omitempty"`

	Error string `json:"error,omitempty"`
}

// ProducedRecord reports whether the attempt yielded a usable compilation record.
func (a *BuildAttempt) ProducedRecord() bool {
	return a != nil && a.Success && a.RecordPath != "" && a.RecordEntries > 0
}

// CompileEntry is one compiler invocation as written by the instrumentation
// collaborator. Field names follow the JSON compilation database format.
type CompileEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
	Output    string   `json:"output,omitempty"`
}

// Program returns the compiler executable of the invocation.
func (e CompileEntry) Program() string {
	if len(e.Arguments) == 0 {
		return ""
	}
	return e.Arguments[0]
}

// CompilationRecord is the ordered sequence of compiler invocations captured by
// a successful instrumented build. Entry order carries no meaning.
type CompilationRecord struct {
	Path    string         `json:"path"`
	Entries []CompileEntry `json:"entries"`
}

// Len returns the number of entries.
func (r *CompilationRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

package process

import (
	"time"
)

// Result captures the outcome of a single command.
type Result struct {
	Command     []string  `json:"command"`
	Success     bool      `json:"success"`
	ExitCode    int       `json:"exit_code"`
	TimedOut    bool      `json:"timed_out,omitempty"`
	Stdout      string    `json:"stdout"`
	Stderr      string    `json:"stderr"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// StderrTail returns at most the last n bytes of stderr.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	if len(r.Stderr) <= n {
		return r.Stderr
	}
	return r.Stderr[len(r.Stderr)-n:]
}

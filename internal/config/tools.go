package config

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ToolStatus is the availability of an external program.
//
//nolint:recvcheck // UnmarshalJSON requires a pointer receiver
type ToolStatus int

const (
	// ToolStatusMissing indicates the program could not be found.
	ToolStatusMissing ToolStatus = iota

	// ToolStatusInstalled indicates the program resolves on PATH or on disk.
	ToolStatusInstalled
)

// String returns a human-readable representation of the tool status.
func (s ToolStatus) String() string {
	if s == ToolStatusInstalled {
		return "installed"
	}
	return "missing"
}

// MarshalJSON implements json.Marshaler.
func (s ToolStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ToolStatus) UnmarshalJSON(data []byte) error {
	if strings.Trim(string(data), `"`) == "installed" {
		*s = ToolStatusInstalled
		return nil
	}
	*s = ToolStatusMissing
	return nil
}

// Tool is an external program referenced by the configuration.
type Tool struct {
	// Role says what the pipeline uses the program for, e.g. "build" or "query:call-graph".
	Role string `json:"role"`

	// Program is the configured executable.
	Program string `json:"program"`

	// Path is the resolved location, empty when missing.
	Path string `json:"path,omitempty"`

	// Required tools abort the run when missing.
	Required bool `json:"required"`

	Status ToolStatus `json:"status"`
}

// ToolDetectionResult holds the results of checking all tools.
type ToolDetectionResult struct {
	Tools []Tool `json:"tools"`

	// HasMissingRequired indicates if any required tool is missing.
	HasMissingRequired bool `json:"has_missing_required"`
}

// LookPathFunc resolves a program name.
type LookPathFunc func(file string) (string, error)

// ToolDetector checks the programs a configuration refers to.
type ToolDetector struct {
	lookPath LookPathFunc
}

// NewToolDetector creates a detector using exec.LookPath.
func NewToolDetector() *ToolDetector {
	return &ToolDetector{lookPath: exec.LookPath}
}

// NewToolDetectorWithLookPath creates a detector with a custom resolver (tests).
func NewToolDetectorWithLookPath(fn LookPathFunc) *ToolDetector {
	return &ToolDetector{lookPath: fn}
}

// Detect resolves every program of cfg concurrently. Relative paths such as
// ./build.sh are resolved against projectDir.
func (d *ToolDetector) Detect(ctx context.Context, cfg *Config, projectDir string) (*ToolDetectionResult, error) {
	tools := ToolsFor(cfg)

	g, _ := errgroup.WithContext(ctx)
	for i := range tools {
		g.Go(func() error {
			// each goroutine owns tools[i]
			path, ok := d.resolve(tools[i].Program, projectDir)
			if ok {
				tools[i].Path = path
				tools[i].Status = ToolStatusInstalled
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ToolDetectionResult{Tools: tools}
	for _, t := range tools {
		if t.Required && t.Status == ToolStatusMissing {
			result.HasMissingRequired = true
		}
	}
	return result, nil
}

func (d *ToolDetector) resolve(program, projectDir string) (string, bool) {
	if strings.ContainsRune(program, filepath.Separator) && !filepath.IsAbs(program) && projectDir != "" {
		program = filepath.Join(projectDir, program)
	}
	path, err := d.lookPath(program)
	if err != nil {
		return "", false
	}
	return path, true
}

// ToolsFor lists the programs referenced by cfg in a stable order.
func ToolsFor(cfg *Config) []Tool {
	tools := []Tool{
		{Role: "compiler", Program: cfg.Toolchain.Compiler, Required: true},
		{Role: "build", Program: first(cfg.Build.Command), Required: true},
		{Role: "instrumentation", Program: first(cfg.Instrumentation.Wrapper), Required: true},
		{Role: "index", Program: first(cfg.Index.Engine), Required: true},
	}
	if cfg.Instrumentation.ShimCC != "" {
		tools = append(tools, Tool{Role: "shim:cc", Program: cfg.Instrumentation.ShimCC})
	}
	if cfg.Instrumentation.ShimCXX != "" {
		tools = append(tools, Tool{Role: "shim:cxx", Program: cfg.Instrumentation.ShimCXX})
	}

	kinds := make([]string, 0, len(cfg.Query.Tools))
	for kind := range cfg.Query.Tools {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		tools = append(tools, Tool{Role: "query:" + kind, Program: first(cfg.Query.Tools[kind])})
	}
	return tools
}

func first(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

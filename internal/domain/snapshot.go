// Package domain provides shared domain types for the scribe pipeline.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"sort"
	"time"
)

// EnvVar is a single captured environment variable.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SearchPaths holds the toolchain-derived search locations.
type SearchPaths struct {
	// ResourceDir is the compiler's resource directory (builtin headers).
	ResourceDir string `json:"resource_dir"`

	// IncludePaths are the default include search paths in compiler order.
	IncludePaths []string `json:"include_paths"`
}

// EnvironmentSnapshot is the resolved process environment plus toolchain
// search paths, captured once per run and never mutated afterward.
//
// Example JSON representation:
//
//	{
//	    "schema_version": "1.0",
//	    "captured_at": "2026-10-17T10:00:00Z",
//	    "compiler": "clang++",
//	    "variables": [{"name": "CC", "value": "clang"}],
//	    "search_paths": {"resource_dir": "/usr/lib/clang/18", "include_paths": [...]}
//	}
type EnvironmentSnapshot struct {
	SchemaVersion string      `json:"schema_version"`
	CapturedAt    time.Time   `json:"captured_at"`
	Compiler      string      `json:"compiler"`
	Variables     []EnvVar    `json:"variables"`
	SearchPaths   SearchPaths `json:"search_paths"`
}

// Lookup returns the value of a captured variable.
func (s *EnvironmentSnapshot) Lookup(name string) (string, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Environ renders the snapshot as a KEY=VALUE list suitable for exec.Cmd.Env.
func (s *EnvironmentSnapshot) Environ() []string {
	env := make([]string, 0, len(s.Variables))
	for _, v := range s.Variables {
		env = append(env, v.Name+"="+v.Value)
	}
	return env
}

// EnvironWith renders the snapshot with overrides applied. Existing variables
// keep their position; new ones are appended in name order. The snapshot itself
// is not modified.
func (s *EnvironmentSnapshot) EnvironWith(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return s.Environ()
	}

	applied := make(map[string]bool, len(overrides))
	env := make([]string, 0, len(s.Variables)+len(overrides))
	for _, v := range s.Variables {
		if o, ok := overrides[v.Name]; ok {
			env = append(env, v.Name+"="+o)
			applied[v.Name] = true
			continue
		}
		env = append(env, v.Name+"="+v.Value)
	}

	extra := make([]string, 0, len(overrides))
	for name := range overrides {
		if !applied[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		env = append(env, name+"="+overrides[name])
	}
	return env
}

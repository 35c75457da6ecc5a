// Package testutil provides testing utilities for scribe.
//
// This package contains mock errors and a scripted process runner used across
// test files. It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockCompilerMissing simulates a wrapper that cannot locate the compiler.
	ErrMockCompilerMissing = errors.New("compiler not found")

	// ErrMockEngineCrashed simulates an indexing engine crash.
	ErrMockEngineCrashed = errors.New("engine crashed")

	// ErrMockToolFailed simulates a query tool failure.
	ErrMockToolFailed = errors.New("tool failed")

	// ErrMockNetwork indicates a mock network error occurred (used in tests).
	ErrMockNetwork = errors.New("network error")
)

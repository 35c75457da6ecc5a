// Package errors provides centralized error handling for scribe.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Pipeline stage errors. Stages 1-4 are fatal to a run; ErrQueryFailed is
// recorded per query and never aborts sibling queries.
var (
	// ErrToolchainQuery indicates the compiler could not report its resource
	// directory while capturing the environment snapshot.
	ErrToolchainQuery = errors.New("toolchain query failed")

	// ErrBuildFailed indicates the uninstrumented build gate failed.
	// No instrumented attempt is made after this error.
	ErrBuildFailed = errors.New("build failed")

	// ErrInstrumentation indicates both compilation recording strategies failed
	// to produce a non-empty compilation record.
	ErrInstrumentation = errors.New("instrumentation failed")

	// ErrIndexBuild indicates the index could not be built, either because no
	// valid compilation entries remained or because the indexing engine failed.
	ErrIndexBuild = errors.New("index build failed")

	// ErrQueryFailed indicates a single analysis query failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrQueryDependencyFailed indicates a chained query could not run because
	// the query it takes its entity id from failed or produced no entity.
	ErrQueryDependencyFailed = errors.New("query dependency failed")

	// ErrCommandTimeout indicates a command exceeded its timeout duration and was killed.
	ErrCommandTimeout = errors.New("command timeout exceeded")

	// ErrCommandFailed indicates that a command execution failed.
	ErrCommandFailed = errors.New("command failed")

	// ErrEmptyRecord indicates a compilation record contained no entries.
	ErrEmptyRecord = errors.New("compilation record is empty")

	// ErrRecordCorrupted indicates a compilation record file could not be parsed.
	ErrRecordCorrupted = errors.New("compilation record corrupted")

	// ErrSnapshotCorrupted indicates a persisted environment snapshot could not be parsed.
	ErrSnapshotCorrupted = errors.New("environment snapshot corrupted")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrRetryBudgetExhausted indicates the fallback controller has no retry left.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// Query definition errors.
var (
	// ErrUnknownQueryKind indicates a query declared an unsupported kind.
	ErrUnknownQueryKind = errors.New("unknown query kind")

	// ErrMissingQueryParam indicates a required query parameter was not provided.
	ErrMissingQueryParam = errors.New("missing required query parameter")

	// ErrDuplicateQuery indicates two queries share the same name.
	ErrDuplicateQuery = errors.New("duplicate query name")

	// ErrQueryCycle indicates chained queries reference each other in a cycle.
	ErrQueryCycle = errors.New("query dependency cycle")

	// ErrQueryNotFound indicates a query name was requested but is not defined.
	ErrQueryNotFound = errors.New("query not defined")
)

// Configuration and CLI errors.
var (
	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidToolchain indicates an invalid toolchain configuration value.
	ErrConfigInvalidToolchain = errors.New("invalid toolchain configuration")

	// ErrConfigInvalidBuild indicates an invalid build configuration value.
	ErrConfigInvalidBuild = errors.New("invalid build configuration")

	// ErrConfigInvalidInstrumentation indicates an invalid instrumentation configuration value.
	ErrConfigInvalidInstrumentation = errors.New("invalid instrumentation configuration")

	// ErrConfigInvalidIndex indicates an invalid index configuration value.
	ErrConfigInvalidIndex = errors.New("invalid index configuration")

	// ErrConfigInvalidQuery indicates an invalid query configuration value.
	ErrConfigInvalidQuery = errors.New("invalid query configuration")

	// ErrConfigInvalidPublish indicates an invalid publish configuration value.
	ErrConfigInvalidPublish = errors.New("invalid publish configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrCommandNotConfigured indicates that a fake command was not configured in tests.
	ErrCommandNotConfigured = errors.New("command not configured")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProjectNotFound indicates the --project path does not exist or is not a directory.
	ErrProjectNotFound = errors.New("project directory not found")

	// ErrOutputLocked indicates another run currently holds the output directory.
	ErrOutputLocked = errors.New("output directory locked by another run")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrRunNotFound indicates the requested pipeline run is not in the ledger.
	ErrRunNotFound = errors.New("run not found")

	// ErrPathTraversal indicates an attempt to use path traversal in an artifact name.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrPublishFailed indicates uploading the artifact set failed.
	ErrPublishFailed = errors.New("artifact publication failed")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}

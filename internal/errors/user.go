package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// A slice rather than a map so wrapped errors can be matched with errors.Is in order.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Pipeline stages
	// ===================
	{
		err: ErrToolchainQuery,
		info: ErrorInfo{
			Message: "The compiler could not report its resource directory.",
			Action:  "Check toolchain.compiler in your config and that the compiler is on PATH.",
		},
	},
	{
		err: ErrBuildFailed,
		info: ErrorInfo{
			Message: "The project build failed without instrumentation.",
			Action:  "Fix the project build first; instrumentation cannot repair a broken build.",
		},
	},
	{
		err: ErrInstrumentation,
		info: ErrorInfo{
			Message: "Neither recording strategy produced a compilation record. Build outputs were kept.",
			Action:  "Check instrumentation.wrapper and instrumentation.shim_cc in your config.",
		},
	},
	{
		err: ErrIndexBuild,
		info: ErrorInfo{
			Message: "The code index could not be built.",
			Action:  "Inspect compile_commands.json in the output directory and the indexing engine logs.",
		},
	},
	{
		err: ErrQueryFailed,
		info: ErrorInfo{
			Message: "An analysis query failed. Other queries were not affected.",
			Action:  "See report.txt in the output directory for per-query errors.",
		},
	},
	{
		err: ErrCommandTimeout,
		info: ErrorInfo{
			Message: "A command exceeded its timeout and was killed.",
			Action:  "Increase the relevant timeout in your config (build.timeout, index.timeout, query.timeout).",
		},
	},

	// ===================
	// Runs and storage
	// ===================
	{
		err: ErrOutputLocked,
		info: ErrorInfo{
			Message: "Another run is writing to this output directory.",
			Action:  "Wait for the other run to finish or choose a different --out directory.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Could not acquire lock. Another process may be using the resource.",
			Action:  "Wait and try again, or check for stuck processes.",
		},
	},
	{
		err: ErrRunNotFound,
		info: ErrorInfo{
			Message: "No run with that ID exists in the run history.",
			Action:  "Run 'scribe history' to list recorded runs.",
		},
	},
	{
		err: ErrProjectNotFound,
		info: ErrorInfo{
			Message: "The project directory does not exist.",
			Action:  "Pass an existing directory with --project.",
		},
	},
	{
		err: ErrPublishFailed,
		info: ErrorInfo{
			Message: "Artifacts were produced but could not be published.",
			Action:  "Check publish.endpoint, publish.bucket and credentials.",
		},
	},

	// ===================
	// Configuration
	// ===================
	{
		err: ErrConfigNil,
		info: ErrorInfo{
			Message: "Configuration is not loaded.",
			Action:  "Ensure .scribe.yaml exists and is valid YAML.",
		},
	},
	{
		err: ErrConfigInvalidQuery,
		info: ErrorInfo{
			Message: "The query configuration is invalid.",
			Action:  "Check the query section of your config for unknown kinds or missing parameters.",
		},
	},
	{
		err: ErrUnknownQueryKind,
		info: ErrorInfo{
			Message: "A query uses an unsupported kind.",
			Action:  "Use one of: divergence, symbol-search, unsafe-cast, call-graph, reference-graph.",
		},
	},
	{
		err: ErrQueryNotFound,
		info: ErrorInfo{
			Message: "A requested query is not defined.",
			Action:  "Define the query in your config or remove it from --queries.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format.",
			Action:  "Use --output text or --output json.",
		},
	},
}

//nolint:gochecknoglobals // Built once from errorInfoEntries
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// Direct sentinels hit the map; wrapped errors fall back to errors.Is traversal.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}

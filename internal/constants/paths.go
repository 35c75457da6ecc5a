package constants

// Log file names and rotation settings.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.scribe/logs/scribe.log
	CLILogFileName = "scribe.log"

	// LogMaxSizeMB is the size at which the CLI log is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 5

	// LogMaxAgeDays is the age after which rotated logs are removed.
	LogMaxAgeDays = 30

	// LogCompress enables gzip for rotated logs.
	LogCompress = true
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global configuration file in ScribeHome.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project-specific configuration file.
	// This file is located in the directory scribe is invoked from.
	ProjectConfigName = ".scribe.yaml"
)

// Files written under the --out directory of a run.
const (
	// SnapshotFileName holds the persisted EnvironmentSnapshot. It doubles as
	// the environment file handed to the indexing engine.
	SnapshotFileName = "environment.json"

	// SharedSnapshotFileName is the redacted snapshot copy that is cataloged
	// and published in place of SnapshotFileName.
	SharedSnapshotFileName = "environment.shared.json"

	// RecordFileName is the compilation record produced by the instrumented build.
	RecordFileName = "compile_commands.json"

	// FilteredRecordFileName is the record after dropping entries whose source vanished.
	FilteredRecordFileName = "compile_commands.filtered.json"

	// RunFileName holds the PipelineRun aggregate for post-mortem inspection.
	RunFileName = "run.json"

	// ReportFileName is the human-readable final report.
	ReportFileName = "report.txt"

	// MetricsFileName is the Prometheus textfile with run metrics.
	MetricsFileName = "metrics.prom"

	// LockFileName guards the output directory against concurrent runs.
	LockFileName = ".scribe.lock"

	// ShimJournalFileName is where the compiler shim appends its journal.
	ShimJournalFileName = "shim_journal.json"
)

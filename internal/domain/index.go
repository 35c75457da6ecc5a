package domain

import "time"

// IndexDatabase describes a persisted, read-only code index. The index content
// itself is opaque; scribe only tracks where it lives and what built it.
type IndexDatabase struct {
	// Key is derived from the record and snapshot hashes.
	Key string `json:"key"`

	// Path is the index file handed to every query tool.
	Path string `json:"path"`

	RecordHash   string `json:"record_hash"`
	SnapshotHash string `json:"snapshot_hash"`

	// RecordPath is the filtered record the engine consumed.
	RecordPath string `json:"record_path"`

	ValidEntries   int      `json:"valid_entries"`
	SkippedEntries int      `json:"skipped_entries"`
	SkippedFiles   []string `json:"skipped_files,omitempty"`

	// Cached is true when a memoized index was reused instead of rebuilt.
	Cached bool `json:"cached"`

	BuiltAt time.Time `json:"built_at"`
}

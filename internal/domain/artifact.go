package domain

import (
	"time"

	"github.com/mrz1836/scribe/internal/constants"
)

// Artifact is a write-once output of a run.
type Artifact struct {
	Name      string                 `json:"name"`
	Path      string                 `json:"path"`
	Kind      constants.ArtifactKind `json:"kind"`
	Producer  string                 `json:"producer"`
	SizeBytes int64                  `json:"size_bytes"`
	SHA256    string                 `json:"sha256"`
	WrittenAt time.Time              `json:"written_at"`
}

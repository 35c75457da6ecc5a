package envsnap

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
	"github.com/mrz1836/scribe/internal/logging"
)

// Save persists the snapshot atomically as JSON. The same file is handed to
// the indexing engine as its env-file.
func Save(path string, snap *domain.EnvironmentSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", scribeerrors.ErrInvalidArgument)
	}
	return fileutil.WriteJSON(path, snap)
}

// Load reads a snapshot written by Save.
func Load(path string) (*domain.EnvironmentSnapshot, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap domain.EnvironmentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", scribeerrors.ErrSnapshotCorrupted, path, err)
	}
	if snap.SearchPaths.ResourceDir == "" {
		return nil, fmt.Errorf("%w: %s: missing resource_dir", scribeerrors.ErrSnapshotCorrupted, path)
	}
	if snap.SearchPaths.IncludePaths == nil {
		snap.SearchPaths.IncludePaths = []string{}
	}
	return &snap, nil
}

// fingerprintView is the part of a snapshot that determines index content.
// The capture timestamp is excluded so identical environments share a key.
type fingerprintView struct {
	Compiler    string             `json:"compiler"`
	Variables   []domain.EnvVar    `json:"variables"`
	SearchPaths domain.SearchPaths `json:"search_paths"`
}

// Fingerprint returns the content hash of a snapshot.
func Fingerprint(snap *domain.EnvironmentSnapshot) (string, error) {
	data, err := json.Marshal(fingerprintView{
		Compiler:    snap.Compiler,
		Variables:   snap.Variables,
		SearchPaths: snap.SearchPaths,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return fileutil.HashBytes(data), nil
}

// Redact returns a copy of snap whose secret values are replaced. Names
// that mark a secret lose their value outright; other values are scrubbed
// of embedded credentials. snap is not modified.
func Redact(snap *domain.EnvironmentSnapshot) *domain.EnvironmentSnapshot {
	if snap == nil {
		return nil
	}
	out := *snap
	out.Variables = make([]domain.EnvVar, len(snap.Variables))
	for i, v := range snap.Variables {
		out.Variables[i] = domain.EnvVar{Name: v.Name, Value: logging.SafeValue(v.Name, v.Value)}
	}
	out.SearchPaths.IncludePaths = append([]string(nil), snap.SearchPaths.IncludePaths...)
	return &out
}

// Package record reads, writes and fingerprints compilation records.
//
// A record on disk is a JSON compilation database: an array of objects with
// "directory", "file", either "arguments" or "command", and an optional
// "output". Records written by scribe always use "arguments".
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
)

// rawEntry accepts both argument encodings of the compilation database format.
type rawEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Read parses a compilation database file.
func Read(path string) (*domain.CompilationRecord, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &domain.CompilationRecord{Path: path, Entries: entries}, nil
}

// Parse decodes compilation database content. An empty file decodes to an
// empty record.
func Parse(data []byte) ([]domain.CompileEntry, error) {
	if strings.TrimSpace(string(data)) == "" {
		return []domain.CompileEntry{}, nil
	}

	var raws []rawEntry
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrRecordCorrupted, err)
	}

	entries := make([]domain.CompileEntry, 0, len(raws))
	for i, raw := range raws {
		args := raw.Arguments
		if len(args) == 0 && raw.Command != "" {
			split, err := shlex.Split(raw.Command)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: %w", scribeerrors.ErrRecordCorrupted, i, err)
			}
			args = split
		}
		if raw.File == "" || len(args) == 0 {
			return nil, fmt.Errorf("%w: entry %d has no file or arguments", scribeerrors.ErrRecordCorrupted, i)
		}
		entries = append(entries, domain.CompileEntry{
			Directory: raw.Directory,
			File:      raw.File,
			Arguments: args,
			Output:    raw.Output,
		})
	}
	return entries, nil
}

// Write persists entries atomically, replacing any previous record at path.
func Write(path string, entries []domain.CompileEntry) (*domain.CompilationRecord, error) {
	if entries == nil {
		entries = []domain.CompileEntry{}
	}
	if err := fileutil.WriteJSON(path, entries); err != nil {
		return nil, fmt.Errorf("failed to write record: %w", err)
	}
	return &domain.CompilationRecord{Path: path, Entries: entries}, nil
}

// Hash returns the content hash of a record. Entries are hashed in a
// canonical order so two records with the same invocations in a different
// order share a hash.
func Hash(rec *domain.CompilationRecord) (string, error) {
	lines := make([]string, 0, rec.Len())
	for _, e := range rec.Entries {
		b, err := json.Marshal(e)
		if err != nil {
			return "", fmt.Errorf("failed to encode entry: %w", err)
		}
		lines = append(lines, string(b))
	}
	sort.Strings(lines)
	return fileutil.HashBytes([]byte(strings.Join(lines, "\n"))), nil
}

// SourcePath resolves the entry's source file against its directory.
func SourcePath(e domain.CompileEntry) string {
	if filepath.IsAbs(e.File) || e.Directory == "" {
		return filepath.Clean(e.File)
	}
	return filepath.Join(e.Directory, e.File)
}

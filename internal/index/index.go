// Package index builds the persisted code index from a compilation record and
// an environment snapshot.
//
// Builds are memoized on (hash(record), hash(snapshot)): when the memo table
// knows the key and the index file is still on disk, the engine is not run.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	"github.com/mrz1836/scribe/internal/envsnap"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/record"
)

// keyLength is the number of hex characters of the index key.
const keyLength = 32

// Memo is the content-keyed index table.
type Memo interface {
	GetIndex(ctx context.Context, key string) (*domain.IndexDatabase, bool, error)
	PutIndex(ctx context.Context, idx *domain.IndexDatabase) error
}

// Settings configures the indexing engine invocation.
type Settings struct {
	// Engine is the engine argv prefix; --db, --record, --workspace and
	// --env-file are appended.
	Engine []string

	// Workspace is the project root handed to the engine.
	Workspace string

	// OutDir receives the filtered record and the index directory.
	OutDir string

	// EnvFile is the persisted snapshot. When empty the snapshot is written
	// to OutDir first.
	EnvFile string
}

// Builder builds indexes. It is not safe for concurrent Build calls on the
// same OutDir.
type Builder struct {
	settings  Settings
	executor  *process.Executor
	memo      Memo
	clock     clock.Clock
	onWarning func(string)
}

// Option configures a Builder.
type Option func(*Builder)

// WithMemo enables memoization.
func WithMemo(m Memo) Option {
	return func(b *Builder) { b.memo = m }
}

// WithClock sets the clock used for build timestamps.
func WithClock(clk clock.Clock) Option {
	return func(b *Builder) { b.clock = clk }
}

// WithWarningHandler receives one message per skipped entry and per
// non-fatal memo failure.
func WithWarningHandler(fn func(string)) Option {
	return func(b *Builder) { b.onWarning = fn }
}

// NewBuilder creates an index builder.
func NewBuilder(settings Settings, executor *process.Executor, opts ...Option) *Builder {
	b := &Builder{
		settings: settings,
		executor: executor,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the record, then returns a memoized index or runs the engine.
//
// Entries whose source file no longer exists are skipped with one warning
// each. ErrIndexBuild is returned when no entry remains or the engine fails.
func (b *Builder) Build(ctx context.Context, rec *domain.CompilationRecord, snap *domain.EnvironmentSnapshot) (*domain.IndexDatabase, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", scribeerrors.ErrInvalidArgument)
	}
	log := zerolog.Ctx(ctx)

	valid, skipped := b.filter(ctx, rec)
	if len(valid) == 0 {
		return nil, scribeerrors.Wrapsf(scribeerrors.ErrIndexBuild, "no valid entries out of %d", rec.Len())
	}

	filtered := &domain.CompilationRecord{Entries: valid}
	recordHash, err := record.Hash(filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}
	snapshotHash, err := envsnap.Fingerprint(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}
	key := Key(recordHash, snapshotHash)

	filteredPath := filepath.Join(b.settings.OutDir, constants.FilteredRecordFileName)
	if _, err := record.Write(filteredPath, valid); err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}

	idx := &domain.IndexDatabase{
		Key:            key,
		Path:           filepath.Join(b.settings.OutDir, constants.IndexDir, key+".db"),
		RecordHash:     recordHash,
		SnapshotHash:   snapshotHash,
		RecordPath:     filteredPath,
		ValidEntries:   len(valid),
		SkippedEntries: len(skipped),
		SkippedFiles:   skipped,
	}

	if cached := b.lookup(ctx, key); cached != nil {
		idx.Path = cached.Path
		idx.BuiltAt = cached.BuiltAt
		idx.Cached = true
		log.Info().Str("key", key).Str("path", idx.Path).Msg("reusing memoized index")
		return idx, nil
	}

	envFile, err := b.envFile(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}

	if err := b.runEngine(ctx, idx, envFile, snap); err != nil {
		return nil, err
	}
	idx.BuiltAt = b.clock.Now().UTC()

	if b.memo != nil {
		if err := b.memo.PutIndex(ctx, idx); err != nil {
			b.warn(log, fmt.Sprintf("index memo not updated: %v", err))
		}
	}

	log.Info().
		Str("key", key).
		Int("valid_entries", idx.ValidEntries).
		Int("skipped_entries", idx.SkippedEntries).
		Msg("index built")

	return idx, nil
}

// Key derives the index key from the record and snapshot hashes.
func Key(recordHash, snapshotHash string) string {
	return fileutil.HashBytes([]byte(recordHash + ":" + snapshotHash))[:keyLength]
}

// filter drops entries whose source file is gone.
func (b *Builder) filter(ctx context.Context, rec *domain.CompilationRecord) ([]domain.CompileEntry, []string) {
	log := zerolog.Ctx(ctx)
	valid := make([]domain.CompileEntry, 0, rec.Len())
	var skipped []string

	if rec == nil {
		return valid, skipped
	}
	for _, e := range rec.Entries {
		src := record.SourcePath(e)
		if _, err := os.Stat(src); err != nil {
			skipped = append(skipped, src)
			b.warn(log, "skipping entry, source file missing: "+src)
			continue
		}
		valid = append(valid, e)
	}
	return valid, skipped
}

// lookup returns the memoized index if its file still exists.
func (b *Builder) lookup(ctx context.Context, key string) *domain.IndexDatabase {
	if b.memo == nil {
		return nil
	}
	log := zerolog.Ctx(ctx)

	cached, found, err := b.memo.GetIndex(ctx, key)
	if err != nil {
		b.warn(log, fmt.Sprintf("index memo unavailable: %v", err))
		return nil
	}
	if !found {
		return nil
	}
	if !fileutil.Exists(cached.Path) {
		log.Debug().Str("key", key).Str("path", cached.Path).Msg("memoized index file missing, rebuilding")
		return nil
	}
	return cached
}

func (b *Builder) envFile(snap *domain.EnvironmentSnapshot) (string, error) {
	if b.settings.EnvFile != "" {
		return b.settings.EnvFile, nil
	}
	path := filepath.Join(b.settings.OutDir, constants.SnapshotFileName)
	if err := envsnap.Save(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// runEngine runs the engine into a temp path and renames the result into place.
func (b *Builder) runEngine(ctx context.Context, idx *domain.IndexDatabase, envFile string, snap *domain.EnvironmentSnapshot) error {
	if len(b.settings.Engine) == 0 {
		return fmt.Errorf("%w: %w: index.engine", scribeerrors.ErrIndexBuild, scribeerrors.ErrEmptyValue)
	}
	if err := os.MkdirAll(filepath.Dir(idx.Path), fileutil.DirPerm); err != nil {
		return fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}

	tmp := idx.Path + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}

	argv := append(append([]string{}, b.settings.Engine...),
		"--db", tmp,
		"--record", idx.RecordPath,
		"--workspace", b.settings.Workspace,
		"--env-file", envFile,
	)
	_, err := b.executor.Run(ctx, process.Command{
		Argv: argv,
		Dir:  b.settings.Workspace,
		Env:  snap.Environ(),
	})
	if err != nil {
		_ = os.RemoveAll(tmp)
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}

	if !fileutil.Exists(tmp) {
		return scribeerrors.Wrapsf(scribeerrors.ErrIndexBuild, "engine produced no index at %s", tmp)
	}
	// A directory database cannot be renamed over an existing one.
	if err := os.RemoveAll(idx.Path); err != nil {
		return fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}
	if err := os.Rename(tmp, idx.Path); err != nil {
		return fmt.Errorf("%w: %w", scribeerrors.ErrIndexBuild, err)
	}
	return nil
}

func (b *Builder) warn(log *zerolog.Logger, msg string) {
	log.Warn().Msg(msg)
	if b.onWarning != nil {
		b.onWarning(msg)
	}
}

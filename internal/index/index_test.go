package index_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/index"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/record"
	"github.com/mrz1836/scribe/internal/store"
	"github.com/mrz1836/scribe/internal/testutil"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return logger.WithContext(context.Background())
}

func testSnapshot() *domain.EnvironmentSnapshot {
	return &domain.EnvironmentSnapshot{
		Compiler:    "clang++",
		Variables:   []domain.EnvVar{{Name: "PATH", Value: "/usr/bin"}},
		SearchPaths: domain.SearchPaths{ResourceDir: "/usr/lib/clang/18", IncludePaths: []string{}},
	}
}

// project creates n source files and a record referencing them.
func project(t *testing.T, n int) (string, *domain.CompilationRecord) {
	t.Helper()
	dir := t.TempDir()
	rec := &domain.CompilationRecord{}
	for i := range n {
		name := fmt.Sprintf("unit%02d.cc", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("int x;\n"), 0o600))
		rec.Entries = append(rec.Entries, domain.CompileEntry{
			Directory: dir,
			File:      name,
			Arguments: []string{"clang++", "-c", name},
		})
	}
	return dir, rec
}

func engineRunner() *testutil.FakeRunner {
	return testutil.NewFakeRunner().On("scribe-indexer", func(cmd process.Command) testutil.FakeResponse {
		for i, a := range cmd.Argv {
			if a == "--db" {
				_ = os.WriteFile(cmd.Argv[i+1], []byte("INDEX"), 0o600)
			}
		}
		return testutil.FakeResponse{}
	})
}

type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) add(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msg)
}

func newBuilder(t *testing.T, workspace string, runner process.Runner, opts ...index.Option) (*index.Builder, string) {
	t.Helper()
	out := t.TempDir()
	settings := index.Settings{
		Engine:    []string{"scribe-indexer"},
		Workspace: workspace,
		OutDir:    out,
	}
	return index.NewBuilder(settings, process.NewExecutorWithRunner(time.Minute, runner), opts...), out
}

func openMemo(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(testCtx(), store.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuild_SkipsDeletedSources(t *testing.T) {
	dir, rec := project(t, 10)
	require.NoError(t, os.Remove(filepath.Join(dir, "unit03.cc")))
	require.NoError(t, os.Remove(filepath.Join(dir, "unit07.cc")))

	w := &warnings{}
	runner := engineRunner()
	b, out := newBuilder(t, dir, runner, index.WithWarningHandler(w.add))

	idx, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 8, idx.ValidEntries)
	assert.Equal(t, 2, idx.SkippedEntries)
	assert.Len(t, w.msgs, 2)
	assert.Contains(t, w.msgs[0], "unit03.cc")
	assert.Contains(t, w.msgs[1], "unit07.cc")
	assert.FileExists(t, idx.Path)
	assert.NoFileExists(t, idx.Path+".tmp")
	assert.Equal(t, filepath.Join(out, constants.IndexDir, idx.Key+".db"), idx.Path)

	filtered, err := record.Read(filepath.Join(out, constants.FilteredRecordFileName))
	require.NoError(t, err)
	assert.Equal(t, 8, filtered.Len())

	calls := runner.CallsTo("scribe-indexer")
	require.Len(t, calls, 1)
	argv := calls[0].Argv
	assert.Contains(t, argv, "--workspace")
	assert.Contains(t, argv, filepath.Join(out, constants.SnapshotFileName), "snapshot written as env-file")
	assert.Equal(t, testSnapshot().Environ(), calls[0].Env)
}

func TestBuild_NoValidEntries(t *testing.T) {
	dir, rec := project(t, 2)
	require.NoError(t, os.Remove(filepath.Join(dir, "unit00.cc")))
	require.NoError(t, os.Remove(filepath.Join(dir, "unit01.cc")))

	runner := engineRunner()
	b, _ := newBuilder(t, dir, runner)

	_, err := b.Build(testCtx(), rec, testSnapshot())
	require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
	assert.Empty(t, runner.Calls(), "engine never runs without entries")

	_, err = b.Build(testCtx(), &domain.CompilationRecord{}, testSnapshot())
	require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
}

func TestBuild_MemoizedIsIdempotent(t *testing.T) {
	dir, rec := project(t, 3)
	runner := engineRunner()
	b, _ := newBuilder(t, dir, runner, index.WithMemo(openMemo(t)))

	first, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// same invocations in another order
	reordered := &domain.CompilationRecord{Entries: []domain.CompileEntry{rec.Entries[2], rec.Entries[0], rec.Entries[1]}}
	second, err := b.Build(testCtx(), reordered, testSnapshot())
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Path, second.Path)
	assert.Len(t, runner.CallsTo("scribe-indexer"), 1)
}

func TestBuild_MemoMissingFileRebuilds(t *testing.T) {
	dir, rec := project(t, 1)
	runner := engineRunner()
	b, _ := newBuilder(t, dir, runner, index.WithMemo(openMemo(t)))

	first, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)
	require.NoError(t, os.Remove(first.Path))

	second, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.FileExists(t, second.Path)
	assert.Len(t, runner.CallsTo("scribe-indexer"), 2)
}

func TestBuild_SnapshotChangesKey(t *testing.T) {
	dir, rec := project(t, 1)
	b, _ := newBuilder(t, dir, engineRunner())

	a, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)

	other := testSnapshot()
	other.SearchPaths.ResourceDir = "/usr/lib/clang/19"
	c, err := b.Build(testCtx(), rec, other)
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, c.Key)
	assert.Equal(t, a.RecordHash, c.RecordHash)
}

func TestBuild_DirectoryDatabaseRebuiltInPlace(t *testing.T) {
	dir, rec := project(t, 2)
	runner := testutil.NewFakeRunner().On("scribe-indexer", func(cmd process.Command) testutil.FakeResponse {
		for i, a := range cmd.Argv {
			if a == "--db" {
				db := cmd.Argv[i+1]
				_ = os.MkdirAll(db, 0o750)
				_ = os.WriteFile(filepath.Join(db, "shard-0"), []byte("INDEX"), 0o600)
			}
		}
		return testutil.FakeResponse{}
	})
	b, _ := newBuilder(t, dir, runner)

	first, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)
	second, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, first.Path, second.Path)
	assert.FileExists(t, filepath.Join(second.Path, "shard-0"))
	assert.NoDirExists(t, second.Path+".tmp")
	assert.Len(t, runner.CallsTo("scribe-indexer"), 2)
}

func TestBuild_EngineFailures(t *testing.T) {
	dir, rec := project(t, 1)

	t.Run("non-zero exit", func(t *testing.T) {
		runner := testutil.NewFakeRunner().Respond("scribe-indexer", testutil.FakeResponse{ExitCode: 1, Stderr: "parse error"})
		b, out := newBuilder(t, dir, runner)
		_, err := b.Build(testCtx(), rec, testSnapshot())
		require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)

		entries, _ := os.ReadDir(filepath.Join(out, constants.IndexDir))
		assert.Empty(t, entries, "no partial index left")
	})

	t.Run("no output", func(t *testing.T) {
		runner := testutil.NewFakeRunner().Respond("scribe-indexer", testutil.FakeResponse{})
		b, _ := newBuilder(t, dir, runner)
		_, err := b.Build(testCtx(), rec, testSnapshot())
		require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
	})

	t.Run("timeout", func(t *testing.T) {
		runner := testutil.NewFakeRunner().Respond("scribe-indexer", testutil.FakeResponse{Delay: time.Second})
		b := index.NewBuilder(index.Settings{Engine: []string{"scribe-indexer"}, Workspace: dir, OutDir: t.TempDir()},
			process.NewExecutorWithRunner(20*time.Millisecond, runner))
		_, err := b.Build(testCtx(), rec, testSnapshot())
		require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
		require.ErrorIs(t, err, scribeerrors.ErrCommandTimeout)
	})

	t.Run("engine not configured", func(t *testing.T) {
		b := index.NewBuilder(index.Settings{Workspace: dir, OutDir: t.TempDir()}, process.NewExecutor(time.Minute))
		_, err := b.Build(testCtx(), rec, testSnapshot())
		require.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
		require.ErrorIs(t, err, scribeerrors.ErrEmptyValue)
	})
}

func TestBuild_UsesConfiguredEnvFile(t *testing.T) {
	dir, rec := project(t, 1)
	runner := engineRunner()
	out := t.TempDir()
	envFile := filepath.Join(t.TempDir(), "environment.json")
	b := index.NewBuilder(index.Settings{Engine: []string{"scribe-indexer"}, Workspace: dir, OutDir: out, EnvFile: envFile},
		process.NewExecutorWithRunner(time.Minute, runner))

	_, err := b.Build(testCtx(), rec, testSnapshot())
	require.NoError(t, err)
	assert.Contains(t, runner.Calls()[0].Argv, envFile)
	assert.NoFileExists(t, filepath.Join(out, constants.SnapshotFileName))
}

func TestBuild_NilSnapshot(t *testing.T) {
	dir, rec := project(t, 1)
	b, _ := newBuilder(t, dir, engineRunner())
	_, err := b.Build(testCtx(), rec, nil)
	require.ErrorIs(t, err, scribeerrors.ErrInvalidArgument)
}

func TestKey(t *testing.T) {
	k := index.Key("r", "s")
	assert.Len(t, k, 32)
	assert.Equal(t, k, index.Key("r", "s"))
	assert.NotEqual(t, k, index.Key("s", "r"))
}

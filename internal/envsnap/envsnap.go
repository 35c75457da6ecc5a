// Package envsnap captures the resolved process environment and the
// toolchain's search paths into a durable, replayable EnvironmentSnapshot.
//
// The ambient environment is read exactly once, at capture time. Every later
// consumer (build retries, the indexing engine) receives the snapshot
// explicitly instead of reading or mutating the scribe process environment.
package envsnap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/process"
)

// Markers of the include search list printed by `<cc> -E -v`.
const (
	includeListStart = "#include <...> search starts here:"
	includeListEnd   = "End of search list."
	frameworkSuffix  = " (framework directory)"
)

// Capturer builds environment snapshots.
type Capturer struct {
	compiler  string
	executor  *process.Executor
	environ   func() []string
	clock     clock.Clock
	onWarning func(error)
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(fn func() []string) Option {
	return func(c *Capturer) { c.environ = fn }
}

// WithClock sets the clock used for the capture timestamp.
func WithClock(clk clock.Clock) Option {
	return func(c *Capturer) { c.clock = clk }
}

// WithWarningHandler registers a callback for non-fatal lookup failures.
func WithWarningHandler(fn func(error)) Option {
	return func(c *Capturer) { c.onWarning = fn }
}

// NewCapturer creates a Capturer probing the given compiler.
func NewCapturer(compiler string, executor *process.Executor, opts ...Option) *Capturer {
	c := &Capturer{
		compiler: compiler,
		executor: executor,
		environ:  os.Environ,
		clock:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capture reads the environment and queries the compiler.
//
// A compiler that cannot report its resource directory fails the capture with
// ErrToolchainQuery. Failing to list include search paths is only a warning;
// the snapshot is returned with an empty include list.
func (c *Capturer) Capture(ctx context.Context) (*domain.EnvironmentSnapshot, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	log := zerolog.Ctx(ctx)

	snap := &domain.EnvironmentSnapshot{
		SchemaVersion: constants.SnapshotSchemaVersion,
		CapturedAt:    c.clock.Now().UTC(),
		Compiler:      c.compiler,
		Variables:     ParseEnviron(c.environ()),
		SearchPaths:   domain.SearchPaths{IncludePaths: []string{}},
	}
	env := snap.Environ()

	resourceDir, err := c.lookupResourceDir(ctx, env)
	if err != nil {
		return nil, err
	}
	snap.SearchPaths.ResourceDir = resourceDir

	includes, err := c.lookupIncludePaths(ctx, env)
	if err != nil {
		log.Warn().Err(err).Str("compiler", c.compiler).Msg("include search paths unavailable")
		if c.onWarning != nil {
			c.onWarning(err)
		}
	} else {
		snap.SearchPaths.IncludePaths = includes
	}

	log.Info().
		Int("variables", len(snap.Variables)).
		Str("resource_dir", resourceDir).
		Int("include_paths", len(snap.SearchPaths.IncludePaths)).
		Msg("environment captured")

	return snap, nil
}

func (c *Capturer) lookupResourceDir(ctx context.Context, env []string) (string, error) {
	result, err := c.executor.Run(ctx, process.Command{
		Argv: []string{c.compiler, "-print-resource-dir"},
		Env:  env,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s -print-resource-dir: %w", scribeerrors.ErrToolchainQuery, c.compiler, err)
	}

	dir := strings.TrimSpace(result.Stdout)
	if dir == "" {
		return "", fmt.Errorf("%w: %s reported an empty resource directory", scribeerrors.ErrToolchainQuery, c.compiler)
	}
	return dir, nil
}

func (c *Capturer) lookupIncludePaths(ctx context.Context, env []string) ([]string, error) {
	result, err := c.executor.Run(ctx, process.Command{
		Argv: []string{c.compiler, "-E", "-x", "c++", "-v", "-"},
		Env:  env,
	})
	if err != nil {
		return nil, fmt.Errorf("include path lookup: %w", err)
	}

	// the list is printed on stderr; some drivers use stdout
	paths := ParseIncludePaths(result.Stderr)
	if len(paths) == 0 {
		paths = ParseIncludePaths(result.Stdout)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no include search list in compiler output", scribeerrors.ErrEmptyValue)
	}
	return paths, nil
}

// ParseEnviron converts KEY=VALUE pairs into ordered variables. Entries
// without a name are dropped and the first occurrence of a name wins.
func ParseEnviron(environ []string) []domain.EnvVar {
	vars := make([]domain.EnvVar, 0, len(environ))
	seen := make(map[string]bool, len(environ))
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" || seen[name] {
			continue
		}
		seen[name] = true
		vars = append(vars, domain.EnvVar{Name: name, Value: value})
	}
	return vars
}

// ParseIncludePaths extracts the angle-bracket include search list from the
// verbose preprocessor output.
func ParseIncludePaths(output string) []string {
	var paths []string
	inList := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, includeListStart):
			inList = true
		case strings.HasPrefix(line, includeListEnd):
			return paths
		case inList:
			p := strings.TrimSpace(strings.TrimSuffix(line, frameworkSuffix))
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

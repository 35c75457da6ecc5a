package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/domain"
	"github.com/mrz1836/scribe/internal/pipeline"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/testutil"
)

const projectConfig = `instrumentation:
  shim_cc: /opt/scribe/shim-cc
query:
  definitions:
    - name: find-parser
      kind: symbol-search
      name_filter: Parser::parse
    - name: casts
      kind: unsafe-cast
`

// isolateHome points the global config and log directory at temp dirs.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCRIBE_HOME", t.TempDir())
	t.Cleanup(CloseLogFile)
}

// testProject is a source tree with a .scribe.yaml and scripted tools.
type testProject struct {
	t        *testing.T
	dir      string
	sources  []string
	gateFail bool
}

func newTestProject(t *testing.T) *testProject {
	t.Helper()
	dir := t.TempDir()
	sources := []string{"parser.cc", "lexer.cc"}
	for _, s := range sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, s), []byte("int f();\n"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".scribe.yaml"), []byte(projectConfig), 0o600))
	return &testProject{t: t, dir: dir, sources: sources}
}

func (p *testProject) writeJournal(path string) {
	entries := make([]domain.CompileEntry, 0, len(p.sources))
	for _, s := range p.sources {
		entries = append(entries, domain.CompileEntry{Directory: p.dir, File: s, Arguments: []string{"clang++", "-c", s}})
	}
	data, err := json.Marshal(entries)
	require.NoError(p.t, err)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(p.t, os.WriteFile(path, data, 0o600))
}

func (p *testProject) options() []pipeline.Option {
	runner := testutil.NewFakeRunner().
		On("clang", func(cmd process.Command) testutil.FakeResponse {
			if cmd.Argv[1] == "-print-resource-dir" {
				return testutil.FakeResponse{Stdout: "/usr/lib/clang/18\n"}
			}
			return testutil.FakeResponse{Stderr: "#include <...> search starts here:\n /usr/include\nEnd of search list.\n"}
		}).
		On("make", func(process.Command) testutil.FakeResponse {
			if p.gateFail {
				return testutil.FakeResponse{ExitCode: 2, Stderr: "parser.cc:1: error: expected ';'"}
			}
			return testutil.FakeResponse{}
		}).
		On("bear", func(cmd process.Command) testutil.FakeResponse {
			p.writeJournal(argAfter(cmd.Argv, "--output"))
			return testutil.FakeResponse{}
		}).
		On("scribe-indexer", func(cmd process.Command) testutil.FakeResponse {
			_ = os.WriteFile(argAfter(cmd.Argv, "--db"), []byte("INDEX"), 0o600)
			return testutil.FakeResponse{}
		}).
		On("scribe-query", func(cmd process.Command) testutil.FakeResponse {
			if cmd.Argv[1] == "symbol-search" {
				return testutil.FakeResponse{Stdout: "c:@S@Parser@F@parse Parser::parse\n"}
			}
			return testutil.FakeResponse{Stdout: "parser.cc:12: narrowing reinterpret_cast<char*>\n"}
		})

	return []pipeline.Option{
		pipeline.WithRunner(runner),
		pipeline.WithEnviron(func() []string { return []string{"PATH=/usr/bin", "CC=clang"} }),
	}
}

func argAfter(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// runProject executes "run" for p into out.
func runProject(t *testing.T, p *testProject, out string, global *GlobalFlags, extra ...string) (string, error) {
	t.Helper()
	args := append([]string{"--project", p.dir, "--out", out}, extra...)
	return execute(newRunCmd(global, &RunFlags{}, p.options()...), args...)
}

package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
)

func sampleRun() *domain.PipelineRun {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(4*time.Minute + 5*time.Second)
	return &domain.PipelineRun{
		ID:            "9f1c",
		Project:       "/src/proj",
		OutDir:        "/out",
		Jobs:          8,
		Status:        constants.RunStatusSucceeded,
		StartedAt:     started,
		CompletedAt:   &completed,
		SnapshotPath:  "/out/environment.json",
		FallbackState: constants.FallbackStateRecovered,
		FallbackTransitions: []domain.FallbackTransition{
			{From: constants.FallbackStatePrimary, To: constants.FallbackStateRetrying, Reason: "wrapper could not find\ncompiler"},
		},
		Record: &domain.RecordSummary{Path: "/out/compile_commands.json", Entries: 1234, Strategy: constants.StrategyShim},
		Index: &domain.IndexDatabase{
			Path: "/out/index/ab.db", ValidEntries: 1232, SkippedEntries: 2,
			SkippedFiles: []string{"src/gone.cc", "src/old.cc"},
		},
		Attempts: []domain.BuildAttempt{
			{Mode: constants.BuildModeUninstrumented, Strategy: constants.StrategyDirect, Success: true, DurationMs: 60000},
			{Mode: constants.BuildModeInstrumented, Strategy: constants.StrategyPrimary, ExitCode: 1, DurationMs: 500},
			{Mode: constants.BuildModeInstrumented, Strategy: constants.StrategyShim, Success: true, RecordPath: "/out/compile_commands.json", RecordEntries: 1234, DurationMs: 65000},
		},
		History: []domain.StageEvent{
			{Stage: constants.StageSnapshot, Outcome: domain.OutcomeWarning, Message: "include lookup failed", Error: "exit status 1"},
		},
		Queries: []domain.QueryOutcome{
			{Name: "casts", Kind: constants.QueryKindUnsafeCast, Success: true, Artifact: &domain.Artifact{Path: "/out/artifacts/casts.txt"}, DurationMs: 1200},
			{Name: "calls", Kind: constants.QueryKindCallGraph, Error: "missing entity id"},
		},
	}
}

func TestRenderReport(t *testing.T) {
	report := RenderReport(sampleRun())

	assert.Contains(t, report, "Run:      9f1c\n")
	assert.Contains(t, report, "Duration: 4m05s")
	assert.Contains(t, report, "/out/compile_commands.json (1,234 entries, shim)")
	assert.Contains(t, report, "(1,232 valid, 2 skipped)")
	assert.Contains(t, report, "Fallback: recovered")
	assert.Contains(t, report, "wrapper could not find compiler", "newlines flattened")
	assert.Contains(t, report, "missing entity id")
	assert.Contains(t, report, "src/gone.cc")
	assert.Contains(t, report, "include lookup failed: exit status 1")

	for _, title := range []string{"Stages", "Build attempts", "Fallback", "Queries", "Skipped sources"} {
		assert.Contains(t, report, "\n"+title+"\n")
	}
}

func TestSections_OmitsEmpty(t *testing.T) {
	run := &domain.PipelineRun{ID: "x", Status: constants.RunStatusFailed, Error: "boom"}
	assert.Empty(t, Sections(run))

	report := RenderReport(run)
	assert.Contains(t, report, "Status:  ✗ failed")
	assert.Contains(t, report, "Error:   boom")
}

func TestPlainTable(t *testing.T) {
	table := PlainTable([]string{"A", "LONGER"}, [][]string{{"xyz", "1"}, {"é", "22"}})
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	assert.Equal(t, []string{
		"A    LONGER",
		"xyz  1",
		"é    22",
	}, lines)
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	PrintRun(NewJSONOutput(&buf), sampleRun())
	assert.Contains(t, buf.String(), `"type":"table"`)
	assert.Contains(t, buf.String(), "casts")
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "7", FormatCount(7))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	out := truncate(long)
	assert.Equal(t, maxCellWidth, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "…"))
}

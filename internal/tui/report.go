package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mrz1836/scribe/internal/domain"
)

// maxCellWidth truncates long cells (error messages, paths) in tables.
const maxCellWidth = 72

// Section is a titled table of a run report.
type Section struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Field is one "label: value" line of a run summary.
type Field struct {
	Label string
	Value string
}

//nolint:gochecknoglobals // shared printer for grouped counts
var countPrinter = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}

// Summary returns the header fields of a run.
func Summary(run *domain.PipelineRun) []Field {
	fields := []Field{
		{"Run", run.ID},
		{"Project", run.Project},
		{"Output", run.OutDir},
		{"Status", RunStatusIcon(run.Status) + " " + run.Status.String()},
		{"Started", run.StartedAt.Format(time.RFC3339)},
	}
	if run.CompletedAt != nil {
		fields = append(fields, Field{"Duration", FormatDurationMs(run.CompletedAt.Sub(run.StartedAt).Milliseconds())})
	}
	fields = append(fields, Field{"Jobs", strconv.Itoa(run.Jobs)})

	if run.SnapshotPath != "" {
		fields = append(fields, Field{"Snapshot", run.SnapshotPath})
	}
	if run.Record != nil {
		fields = append(fields, Field{"Record", fmt.Sprintf("%s (%s entries, %s)",
			run.Record.Path, FormatCount(run.Record.Entries), run.Record.Strategy)})
	}
	if run.FallbackState != "" {
		fields = append(fields, Field{"Fallback", run.FallbackState.String()})
	}
	if run.Index != nil {
		idx := fmt.Sprintf("%s (%s valid, %s skipped", run.Index.Path,
			FormatCount(run.Index.ValidEntries), FormatCount(run.Index.SkippedEntries))
		if run.Index.Cached {
			idx += ", cached"
		}
		fields = append(fields, Field{"Index", idx + ")"})
	}
	if run.BuildOutputsPreserved {
		fields = append(fields, Field{"Outputs", "build outputs preserved"})
	}
	if run.Error != "" {
		fields = append(fields, Field{"Error", run.Error})
	}
	return fields
}

// Sections returns the tables of a run report. Empty tables are omitted.
func Sections(run *domain.PipelineRun) []Section {
	var sections []Section

	if len(run.History) > 0 {
		s := Section{Title: "Stages", Headers: []string{"STAGE", "OUTCOME", "DURATION", "MESSAGE"}}
		for _, ev := range run.History {
			msg := ev.Message
			if ev.Error != "" {
				msg += ": " + ev.Error
			}
			s.Rows = append(s.Rows, []string{
				ev.Stage.String(),
				OutcomeIcon(ev.Outcome) + " " + string(ev.Outcome),
				FormatDurationMs(ev.DurationMs),
				truncate(msg),
			})
		}
		sections = append(sections, s)
	}

	if len(run.Attempts) > 0 {
		s := Section{Title: "Build attempts", Headers: []string{"MODE", "STRATEGY", "RESULT", "EXIT", "DURATION", "RECORD"}}
		for _, a := range run.Attempts {
			result := "failed"
			switch {
			case a.TimedOut:
				result = "timed out"
			case a.Success:
				result = "ok"
			}
			record := "-"
			if a.RecordPath != "" {
				record = FormatCount(a.RecordEntries) + " entries"
			}
			s.Rows = append(s.Rows, []string{
				a.Mode.String(), a.Strategy.String(), result,
				strconv.Itoa(a.ExitCode), FormatDurationMs(a.DurationMs), record,
			})
		}
		sections = append(sections, s)
	}

	if len(run.FallbackTransitions) > 0 {
		s := Section{Title: "Fallback", Headers: []string{"FROM", "TO", "REASON"}}
		for _, tr := range run.FallbackTransitions {
			s.Rows = append(s.Rows, []string{tr.From.String(), tr.To.String(), truncate(tr.Reason)})
		}
		sections = append(sections, s)
	}

	if len(run.Queries) > 0 {
		s := Section{Title: "Queries", Headers: []string{"NAME", "KIND", "RESULT", "DURATION", "ARTIFACT / ERROR"}}
		for _, q := range run.Queries {
			result, detail := "✓ ok", ""
			if q.Artifact != nil {
				detail = q.Artifact.Path
			}
			if !q.Success {
				result, detail = "✗ failed", q.Error
			}
			s.Rows = append(s.Rows, []string{
				q.Name, q.Kind.String(), result, FormatDurationMs(q.DurationMs), truncate(detail),
			})
		}
		sections = append(sections, s)
	}

	if run.Index != nil && len(run.Index.SkippedFiles) > 0 {
		s := Section{Title: "Skipped sources", Headers: []string{"FILE"}}
		for _, f := range run.Index.SkippedFiles {
			s.Rows = append(s.Rows, []string{f})
		}
		sections = append(sections, s)
	}

	return sections
}

// RenderReport renders a run as plain text for report.txt.
func RenderReport(run *domain.PipelineRun) string {
	var b strings.Builder

	fields := Summary(run)
	width := 0
	for _, f := range fields {
		width = max(width, runewidth.StringWidth(f.Label))
	}
	for _, f := range fields {
		b.WriteString(runewidth.FillRight(f.Label+":", width+2))
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}

	for _, s := range Sections(run) {
		b.WriteString("\n")
		b.WriteString(s.Title)
		b.WriteString("\n")
		b.WriteString(PlainTable(s.Headers, s.Rows))
	}
	return b.String()
}

// PlainTable aligns rows under headers with two spaces between columns.
func PlainTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(headers)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

// PrintRun writes a run through out: the summary as info lines and each
// section as a table.
func PrintRun(out Output, run *domain.PipelineRun) {
	for _, f := range Summary(run) {
		out.Info(fmt.Sprintf("%-9s %s", f.Label+":", f.Value))
	}
	for _, s := range Sections(run) {
		out.Info("")
		out.Info(s.Title)
		out.Table(s.Headers, s.Rows)
	}
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.Truncate(s, maxCellWidth, "…")
}

// Package tui renders scribe's terminal output: status lines, tables and
// the final run report.
//
// All colors use AdaptiveColor for light/dark terminal support. Call
// CheckNoColor at the start of commands to honor NO_COLOR and TERM=dumb.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
)

//nolint:gochecknoglobals // package-level styling API
var (
	// ColorPrimary is blue, used for active states and headings.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}

	// StyleBold applies bold formatting to text.
	StyleBold = lipgloss.NewStyle().Bold(true)

	// StyleDim applies faint formatting to text.
	StyleDim = lipgloss.NewStyle().Faint(true)
)

// OutputStyles holds common output styles.
type OutputStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Dim     lipgloss.Style
	Title   lipgloss.Style
}

// NewOutputStyles creates the common output styles.
func NewOutputStyles() *OutputStyles {
	return &OutputStyles{
		Success: lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Info:    lipgloss.NewStyle().Foreground(ColorPrimary),
		Dim:     lipgloss.NewStyle().Foreground(ColorMuted),
		Title:   lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).MarginBottom(1),
	}
}

// TableStyles holds lipgloss styles for table rendering.
type TableStyles struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}

// NewTableStyles creates styles for table rendering.
func NewTableStyles() *TableStyles {
	return &TableStyles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// CheckNoColor disables colors when the environment asks for it.
func CheckNoColor() {
	if !HasColorSupport() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// HasColorSupport returns false if NO_COLOR is set (any value, including
// empty) or TERM=dumb. See https://no-color.org/.
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// RunStatusIcon returns the icon for a run status.
func RunStatusIcon(status constants.RunStatus) string {
	switch status {
	case constants.RunStatusSucceeded:
		return "✓"
	case constants.RunStatusFailed:
		return "✗"
	case constants.RunStatusRunning:
		return "●"
	}
	return "?"
}

// OutcomeIcon returns the icon for a stage outcome.
func OutcomeIcon(outcome domain.StageOutcome) string {
	switch outcome {
	case domain.OutcomeOK:
		return "✓"
	case domain.OutcomeWarning:
		return "⚠"
	case domain.OutcomeFailed:
		return "✗"
	case domain.OutcomeSkipped:
		return "-"
	}
	return "?"
}

// OutcomeColor returns the semantic color for a stage outcome.
func OutcomeColor(outcome domain.StageOutcome) lipgloss.AdaptiveColor {
	switch outcome {
	case domain.OutcomeOK:
		return ColorSuccess
	case domain.OutcomeWarning:
		return ColorWarning
	case domain.OutcomeFailed:
		return ColorError
	case domain.OutcomeSkipped:
		return ColorMuted
	}
	return ColorMuted
}

// FallbackColor returns the semantic color for a fallback state.
func FallbackColor(state constants.FallbackState) lipgloss.AdaptiveColor {
	switch state {
	case constants.FallbackStatePrimary:
		return ColorSuccess
	case constants.FallbackStateRecovered, constants.FallbackStateRetrying:
		return ColorWarning
	case constants.FallbackStateExhausted:
		return ColorError
	}
	return ColorMuted
}

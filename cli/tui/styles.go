// Package tui provides read-only Bubble Tea views of suite history.
//
// TUI mode is opt-in (--tui) and only available for stats and inspect. It
// renders the same responses as the text formats and nothing more.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor  = lipgloss.Color("#F2C94C") // canary yellow
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2).
			Width(16).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center)
)

// StatusStyle colors suite statuses (SUCCEEDED...) and scenario statuses (passed...).
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "SUCCEEDED", "passed":
		return SuccessStyle
	case "ABORTED", "aborted", "timed_out":
		return WarningStyle
	case "FAILED", "failed", "errored":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

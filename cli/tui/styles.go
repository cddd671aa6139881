// Package tui holds the opt-in Bubble Tea views of the lifekline CLI: a
// live view while an answer streams and a scrollable report view. Views
// show the same payloads the plain renderers print.
package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive colors keep text readable on light and dark terminals. Red is
// good fortune and green is decline, as on a Chinese stock chart.
var (
	accent = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	good   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	fair   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	poor   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	faint  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	plain  = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	LabelStyle   = lipgloss.NewStyle().Foreground(faint).Width(16)
	ValueStyle   = lipgloss.NewStyle().Foreground(plain)
	SuccessStyle = lipgloss.NewStyle().Foreground(good)
	WarningStyle = lipgloss.NewStyle().Foreground(fair)
	ErrorStyle   = lipgloss.NewStyle().Foreground(poor).Bold(true)
	HelpStyle    = lipgloss.NewStyle().Foreground(faint).MarginTop(1)
	ChartStyle   = lipgloss.NewStyle().Foreground(accent)

	// TailStyle renders the last characters of a streaming answer.
	TailStyle = lipgloss.NewStyle().Foreground(faint).Italic(true)
)

// outcomeStyles maps outcome statuses that are not failures.
var outcomeStyles = map[string]lipgloss.Style{
	"success":  SuccessStyle,
	"canceled": WarningStyle,
	"":         ValueStyle,
}

// OutcomeStyle returns the style an outcome status is shown in. Unknown
// statuses are failures.
func OutcomeStyle(status string) lipgloss.Style {
	if s, ok := outcomeStyles[status]; ok {
		return s
	}
	return ErrorStyle
}

// ScoreStyle colors a 0-10 section score: 7 and up is good, 4 and up fair.
func ScoreStyle(score float64) lipgloss.Style {
	if score >= 7 {
		return SuccessStyle
	}
	if score >= 4 {
		return WarningStyle
	}
	return ErrorStyle
}

// Package tui provides a terminal user interface for the netwatch gateway.
package tui

import (
	"charm.land/lipgloss/v2"

	"github.com/dohr-michael/netwatch/internal/netmetrics"
)

// Palette, tuned for dark terminals.
var (
	ColorUser      = lipgloss.Color("#79C0FF")
	ColorAssistant = lipgloss.Color("#D8A6FF")
	ColorSuccess   = lipgloss.Color("#7EE2B8")
	ColorWarning   = lipgloss.Color("#F59E0B")
	ColorError     = lipgloss.Color("#FF6B6B")
	ColorMuted     = lipgloss.Color("#9CA3AF")
	ColorStatusBg  = lipgloss.Color("#1F2937")
	ColorStatusFg  = lipgloss.Color("#D1D5DB")
	ColorBorder    = lipgloss.Color("#374151")
)

// Component styles.
var (
	UserStyle = lipgloss.NewStyle().
			Foreground(ColorUser).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(ColorAssistant).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StatusBarStyle = lipgloss.NewStyle().
			Background(ColorStatusBg).
			Foreground(ColorStatusFg).
			Padding(0, 1)

	PromptBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder).
				Padding(0, 1)
)

// StatusStyle colors a metric according to its health status.
func StatusStyle(status string) lipgloss.Style {
	switch netmetrics.Status(status) {
	case netmetrics.StatusSuccess:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case netmetrics.StatusWarning:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case netmetrics.StatusError:
		return lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	default:
		return MutedStyle
	}
}

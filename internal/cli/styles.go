package cli

import "github.com/charmbracelet/lipgloss"

// Warm bakery palette.
var (
	colorAccent  = lipgloss.Color("#C8702A")
	colorCrust   = lipgloss.Color("#E3A857")
	colorSuccess = lipgloss.Color("#2FBF71")
	colorWarn    = lipgloss.Color("#FFB020")
	colorError   = lipgloss.Color("#E23D2D")
	colorMuted   = lipgloss.Color("#8B7F77")
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	styleBanner = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCrust).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 2)

	styleAssistant = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleWarn = lipgloss.NewStyle().
			Foreground(colorWarn)

	styleError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)
)

package tui

import "github.com/charmbracelet/lipgloss"

// Dashboard palette.
const (
	colorBorder   = lipgloss.Color("#2A2A4A")
	colorHealthy  = lipgloss.Color("#39FF14")
	colorWarning  = lipgloss.Color("#FFAA00")
	colorCritical = lipgloss.Color("#FF0055")

	colorTextPrimary   = lipgloss.Color("#FFFFFF")
	colorTextSecondary = lipgloss.Color("#B4B4D0")
	colorTextMuted     = lipgloss.Color("#6B6B8D")

	colorAccent   = lipgloss.Color("#00FFFF")
	colorInGraph  = lipgloss.Color("#00FFFF")
	colorOutGraph = lipgloss.Color("#BF40FF")
)

// Utilization thresholds for row coloring.
const (
	warnUtilization = 70.0
	critUtilization = 90.0
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorTextPrimary).
			Bold(true).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextSecondary)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorTextPrimary)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(colorTextPrimary).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorCritical)

	detailBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// Status glyphs.
const (
	glyphUp      = "◉"
	glyphDown    = "◌"
	glyphPolling = "◐"
	glyphFailed  = "✗"
)

// utilizationColor maps a percentage onto the severity palette.
func utilizationColor(pct float64) lipgloss.Color {
	switch {
	case pct >= critUtilization:
		return colorCritical
	case pct >= warnUtilization:
		return colorWarning
	default:
		return colorHealthy
	}
}

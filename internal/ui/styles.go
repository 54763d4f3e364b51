package ui

import "github.com/charmbracelet/lipgloss"

// Color palette. Single cyan accent plus semantic warning/error colors.
const (
	ColorCyan     = "45"  // Primary accent (#00D7FF)
	ColorCyanDim  = "31"  // Dimmed cyan for secondary accents
	ColorWhite    = "255" // Titles, important text
	ColorGray     = "245" // Labels, secondary text
	ColorDarkGray = "238" // Borders, separators, de-emphasized text
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings, backstop markers
)

// Styles holds the lipgloss styles used by the CLI renderers.
type Styles struct {
	// Text styles
	Header  lipgloss.Style
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Accent  lipgloss.Style

	// Result rendering
	URL   lipgloss.Style
	Badge lipgloss.Style
	Score lipgloss.Style

	// Layout
	Border lipgloss.Style
	Panel  lipgloss.Style
}

// DefaultStyles returns the styled components for color terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),

		URL:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyanDim)),
		Badge: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Score: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan)),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorDarkGray)).
			Padding(0, 1),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Title:   lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle(),
		URL:     lipgloss.NewStyle(),
		Badge:   lipgloss.NewStyle(),
		Score:   lipgloss.NewStyle(),
		Border:  lipgloss.NewStyle(),
		Panel:   lipgloss.NewStyle(),
	}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}

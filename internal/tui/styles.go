package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"ready":   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"running": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"done":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"cached":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"launching":   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"waiting":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Stopped
		"down": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"error": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

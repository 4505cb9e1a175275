package cmd

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
	accentColor  = lipgloss.Color("#BD93F9") // Purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	borderColor  = lipgloss.Color("#6272A4") // Muted purple
	summaryColor = lipgloss.Color("#8BE9FD") // Cyan accent
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(textColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(borderColor).Italic(true)
	summaryStyle = lipgloss.NewStyle().Foreground(summaryColor).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	borderStyle  = lipgloss.NewStyle().Foreground(borderColor)
)

// column is one cell of a table row.
type column struct {
	text  string
	width int
	color lipgloss.Color
	right bool
}

func renderRow(cols []column, header bool) string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		style := lipgloss.NewStyle().Padding(0, 1).Width(c.width)
		if header {
			style = style.Foreground(headerColor).Bold(true)
		} else {
			style = style.Foreground(c.color)
		}
		if c.right {
			style = style.Align(lipgloss.Right)
		}
		cells[i] = style.Render(c.text)
	}
	return joinCells(cells)
}

func joinCells(cells []string) string {
	return strings.Join(cells, borderStyle.Render("│"))
}

func separator(widths ...int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	return borderStyle.Render(strings.Join(parts, "┼"))
}

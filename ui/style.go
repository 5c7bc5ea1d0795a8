package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// Success renders the text in the success color.
func Success(text string) string {
	return successStyle.Render(text)
}

// Warn renders the text in the warning color.
func Warn(text string) string {
	return warnStyle.Render(text)
}

// Error renders the text in the error color.
func Error(text string) string {
	return errorStyle.Render(text)
}

// Muted renders the text dimmed.
func Muted(text string) string {
	return mutedStyle.Render(text)
}

// Header renders the text bold.
func Header(text string) string {
	return headerStyle.Render(text)
}

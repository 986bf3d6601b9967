// Package style provides consistent terminal styling using Lipgloss.
package style

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	colorGood    = lipgloss.Color("76")  // green
	colorBusy    = lipgloss.Color("39")  // blue
	colorWarn    = lipgloss.Color("214") // orange
	colorBad     = lipgloss.Color("196") // bright red
	colorNeutral = lipgloss.Color("242") // gray
)

// Shared styles
var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Foreground(colorNeutral)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	Good = lipgloss.NewStyle().Foreground(colorGood)
	Busy = lipgloss.NewStyle().Foreground(colorBusy)
	Warn = lipgloss.NewStyle().Foreground(colorWarn)
	Bad  = lipgloss.NewStyle().Foreground(colorBad).Bold(true)
)

// Status renders a session status with its conventional color.
func Status(status string) string {
	switch status {
	case "Working", "Completed":
		return Good.Render(status)
	case "Started", "Starting":
		return Busy.Render(status)
	case "Blocked":
		return Warn.Render(status)
	case "Error":
		return Bad.Render(status)
	case "Terminated":
		return Dim.Render(status)
	default:
		return Dim.Render(status)
	}
}

// Health renders a health score with a color matching its band.
func Health(score float64) string {
	text := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 0.8:
		return Good.Render(text)
	case score >= 0.5:
		return Busy.Render(text)
	case score >= 0.3:
		return Warn.Render(text)
	default:
		return Bad.Render(text)
	}
}

// IsTTY reports whether stdout is an interactive terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/perts/copilot/internal/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	completeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// stepMark renders the status column of a step row.
func stepMark(s core.StepStatus) string {
	switch {
	case s.Default:
		return currentStyle.Render(">")
	case s.Complete:
		return completeStyle.Render("x")
	default:
		return pendingStyle.Render("-")
	}
}

// progressLabel renders a module's progress.
func progressLabel(progress int) string {
	label := fmt.Sprintf("%3d%%", progress)
	switch {
	case progress >= 100:
		return completeStyle.Render(label)
	case progress > 0:
		return currentStyle.Render(label)
	default:
		return pendingStyle.Render(label)
	}
}

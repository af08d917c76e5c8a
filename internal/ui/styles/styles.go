package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

var (
	Title    = lipgloss.NewStyle().Bold(true)
	Header   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	Footer   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	Box      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	Selected = lipgloss.NewStyle().Reverse(true).Bold(true)
	Danger   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
	Good     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7AF"))
	Faint    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C"))
	Label    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Width(9)

	Dialog = Box.
		BorderForeground(lipgloss.Color("#7DCE13")).
		Padding(1, 2)
	DialogDanger = Dialog.BorderForeground(lipgloss.Color("#FF5F87"))
)

// State picks the color for a derived VM state.
func State(s domain.VMState) lipgloss.Style {
	switch s {
	case domain.StateRunning:
		return Good
	case domain.StatePaused:
		return Warn
	case domain.StateStopped:
		return Faint
	default:
		return Danger
	}
}

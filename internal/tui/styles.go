package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	badgeStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0"))
	idleBadge     = badgeStyle.Background(lipgloss.Color("245"))
	activeBadge   = badgeStyle.Background(lipgloss.Color("42"))
	speakingBadge = badgeStyle.Background(lipgloss.Color("212"))
	deniedBadge   = badgeStyle.Background(lipgloss.Color("196"))

	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	pendingStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

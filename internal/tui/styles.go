package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title      lipgloss.Style
	Path       lipgloss.Style
	Pane       lipgloss.Style
	Collection lipgloss.Style
	Document   lipgloss.Style
	Selected   lipgloss.Style
	Muted      lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Key        lipgloss.Style
	String     lipgloss.Style
	Number     lipgloss.Style
	Keyword    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7")),
		Path:       lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Pane:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#3b4261")).Padding(0, 1),
		Collection: lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		Document:   lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5")),
		Selected:   lipgloss.NewStyle().Bold(true).Reverse(true),
		Muted:      lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")),
		Success:    lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Key:        lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
		String:     lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Number:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9e64")),
		Keyword:    lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")),
	}
}

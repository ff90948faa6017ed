package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	unreadBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("231")).
				Background(lipgloss.Color("161")).
				Bold(true).
				Padding(0, 1)

	messageOwnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("111")).
			Align(lipgloss.Right)

	messageOtherStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("120"))

	messageHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")).
			Italic(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117")).
			Bold(true)
)

// applyTheme adjusts the palette for terminals with a light background.
// "default" and "dark" keep the colors above.
func applyTheme(name string) {
	if name != "light" {
		return
	}
	normalStyle = normalStyle.Foreground(lipgloss.Color("235"))
	helpStyle = helpStyle.Foreground(lipgloss.Color("245"))
	statusStyle = statusStyle.Foreground(lipgloss.Color("25"))
	inputStyle = inputStyle.Foreground(lipgloss.Color("25"))
	messageOwnStyle = messageOwnStyle.Foreground(lipgloss.Color("26"))
	messageOtherStyle = messageOtherStyle.Foreground(lipgloss.Color("28"))
	messageHeaderStyle = messageHeaderStyle.Foreground(lipgloss.Color("245"))
	pendingStyle = pendingStyle.Foreground(lipgloss.Color("130"))
}

package ui

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle ANSI 6 (Cyan) for headings, readable on light and dark terminals
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) keeps descriptions quiet
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// AnswerStyle frames the synthesized answer in one-shot mode
	AnswerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(2)

	// WarnStyle ANSI 3 (Yellow) for degraded-mode notices
	WarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Italic(true)

	// RefStyle ANSI 8 for evidence citations under an answer
	RefStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

package shell

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/rkirkendall/lumina/internal/studio"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)
)

// modeBadge renders the active mode the way the studio's toolbar labels it.
func modeBadge(m studio.Mode) string {
	var label string
	switch m {
	case studio.ModeCreate:
		label = "crear"
	case studio.ModeEdit:
		label = "editar"
	case studio.ModeAssistant:
		label = "asistente"
	default:
		label = string(m)
	}
	return metaStyle.Render(fmt.Sprintf("[%s]", label))
}

func roleLabel(r studio.Role) string {
	if r == studio.RoleUser {
		return userStyle.Render("Tú")
	}
	return assistantStyle.Render("Lumina")
}

// NewMarkdownRenderer returns a glamour renderer for assistant replies that
// adapts to the terminal background.
func NewMarkdownRenderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = 80
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

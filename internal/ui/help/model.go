package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/email-copilot/internal/keys"
	"github.com/nhle/email-copilot/internal/theme"
	"github.com/nhle/email-copilot/internal/ui/command"
)

// Model is the help overlay: key bindings followed by the palette
// commands.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates the help overlay.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	m := Model{keys: k, help: h}
	m.SetSize(width, height)
	return m
}

// Update is a no-op; the parent closes the overlay.
func (m Model) Update(tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the overlay.
func (m Model) View() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		section("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		section("Commands (press :)"),
		commandList(),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the overlay dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-8, 0)
}

func section(title string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render(title)
}

func commandList() string {
	usage := 0
	for _, c := range command.Commands {
		usage = max(usage, len(c.Usage))
	}

	var b strings.Builder
	for i, c := range command.Commands {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(lipgloss.NewStyle().Width(usage + 2).Render(c.Usage))
		b.WriteString(theme.MutedStyle.Render(c.Description))
	}
	return b.String()
}

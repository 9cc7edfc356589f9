package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/email-copilot/internal/theme"
)

// Msg is emitted when the user executes a command.
type Msg struct {
	Name string
	Arg  string
}

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Entry describes one palette command.
type Entry struct {
	Usage       string
	Description string
}

// Commands lists what the palette understands, for the help overlay.
var Commands = []Entry{
	{"refresh", "fetch unread mail now (also sync, r)"},
	{"search <query>", "search the mailbox"},
	{"unread", "back to unread mail (also inbox)"},
	{"tone <value>", "record a tone preference"},
	{"greeting <value>", "record a preferred greeting"},
	{"closing <value>", "record a preferred closing"},
	{"setup", "configure the account (also configure, config)"},
	{"help", "show this overlay"},
	{"quit", "exit (also q)"},
}

// Parse splits a command line into its lowercased name and the rest.
func Parse(line string) Msg {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")
	return Msg{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh | search <query> | unread | tone|greeting|closing <value> | setup | quit"
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				return m, func() tea.Msg { return CancelMsg{} }
			}
			out := Parse(line)
			return m, func() tea.Msg { return out }
		case "esc":
			m.input.Reset()
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command Palette")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View())

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

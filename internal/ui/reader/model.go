package reader

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/email-copilot/internal/draft"
	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/keys"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// ComposeMsg asks the parent to draft a reply. Feedback is empty for a
// first draft.
type ComposeMsg struct {
	EmailID  string
	Feedback string
}

// DraftLoadedMsg carries a composed reply.
type DraftLoadedMsg struct {
	Draft gateway.Draft
}

// SaveMsg asks the parent to store the current draft in the drafts mailbox.
type SaveMsg struct {
	To      string
	Subject string
	Body    string
}

// Model is the single email view with its reply draft.
type Model struct {
	email    *model.EmailMetadata
	draft    *model.DraftReply
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	working  bool
}

// New creates the reader view.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Open shows email and discards any previous draft.
func (m *Model) Open(email model.EmailMetadata) {
	m.email = &email
	m.draft = nil
	m.working = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Email returns the email on display.
func (m Model) Email() (model.EmailMetadata, bool) {
	if m.email == nil {
		return model.EmailMetadata{}, false
	}
	return *m.email, true
}

// Update handles messages for the reader view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DraftLoadedMsg:
		m.working = false
		if !msg.Draft.Failed() && m.email != nil && msg.Draft.EmailID == m.email.ID {
			d := msg.Draft.DraftReply
			m.draft = &d
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Draft):
			return m.compose("")

		case key.Matches(msg, m.keys.Shorter):
			if m.draft != nil {
				return m.compose("shorter")
			}

		case key.Matches(msg, m.keys.Save):
			if m.draft != nil && m.email != nil {
				save := SaveMsg{
					To:      m.email.Sender,
					Subject: draft.ReplySubject(m.email.Subject),
					Body:    m.draft.Content,
				}
				return m, func() tea.Msg { return save }
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) compose(feedback string) (Model, tea.Cmd) {
	if m.email == nil || m.working {
		return m, nil
	}
	m.working = true
	m.viewport.SetContent(m.renderContent())
	req := ComposeMsg{EmailID: m.email.ID, Feedback: feedback}
	return m, func() tea.Msg { return req }
}

// View renders the reader.
func (m Model) View() string {
	if m.email == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No email selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	if m.email == nil {
		return ""
	}
	e := m.email

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	var sections []string
	sections = append(sections, titleStyle.Render(subjectOrPlaceholder(e.Subject)), "")

	field := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			theme.LabelStyle.Render(label),
			lipgloss.NewStyle().Foreground(theme.ColorWhite).Render(value),
		))
	}
	field("From:", e.Sender)
	field("To:", e.Recipient)
	if !e.Timestamp.IsZero() {
		field("Seen:", e.Timestamp.Format("2006-01-02 15:04"))
	}
	field("Thread:", e.ThreadID)

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	if e.Summary == "" {
		sections = append(sections, theme.MutedStyle.Italic(true).Render("No text content"))
	} else {
		sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(e.Summary))
	}

	sections = append(sections, "", separator, "")
	switch {
	case m.working:
		sections = append(sections, theme.MutedStyle.Render("Composing reply..."))
	case m.draft != nil:
		header := fmt.Sprintf("Draft reply (%s)", m.draft.Tone)
		sections = append(sections,
			titleStyle.Render(header),
			theme.DraftStyle.Width(max(min(m.width-4, 80), 20)).Render(strings.TrimRight(m.draft.Content, "\n")),
		)
	default:
		sections = append(sections, theme.MutedStyle.Render("Press d to draft a reply."))
	}

	return strings.Join(sections, "\n")
}

func subjectOrPlaceholder(s string) string {
	if s == "" {
		return "(no subject)"
	}
	return s
}

// SetSize updates the reader dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.viewport.SetContent(m.renderContent())
}

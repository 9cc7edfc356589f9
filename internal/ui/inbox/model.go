package inbox

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/keys"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/theme"
)

// Source lists and searches emails.
type Source interface {
	ListUnread(ctx context.Context, limit int) gateway.EmailList
	Search(ctx context.Context, query string) gateway.EmailList
}

// LoadedMsg carries a list or search result.
type LoadedMsg struct {
	Query  string
	Result gateway.EmailList
}

// OpenMsg asks the parent to open an email.
type OpenMsg struct {
	Email model.EmailMetadata
}

// loadTimeout bounds one list or search round trip.
const loadTimeout = 45 * time.Second

// Model is the inbox list view.
type Model struct {
	list        list.Model
	source      Source
	keys        *keys.KeyMap
	query       string
	loading     bool
	err         string
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates the inbox view.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-2)
	l.Title = "Unread"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search mail (Gmail syntax works)..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		source:      src,
		keys:        k,
		searchInput: si,
		loading:     true,
		width:       width,
		height:      height,
	}
}

// Init loads the unread list.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.err = msg.Result.Error
		m.query = msg.Query
		if msg.Query == "" {
			m.list.Title = "Unread"
		} else {
			m.list.Title = "Search: " + msg.Query
		}
		items := make([]list.Item, len(msg.Result.Emails))
		for i, e := range msg.Result.Emails {
			items[i] = Item{Email: e}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = m.searchInput.Value()
		cmd := m.Load()
		return m, cmd

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		item, ok := m.list.SelectedItem().(Item)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{Email: item.Email} }

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.Load()
		return m, cmd

	case key.Matches(msg, m.keys.Back):
		if m.query != "" {
			m.query = ""
			cmd := m.Load()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SearchFor runs query as if it had been typed into the search bar.
func (m *Model) SearchFor(query string) tea.Cmd {
	m.searchMode = false
	m.query = query
	return m.Load()
}

// ShowUnread leaves search results for the unread list.
func (m *Model) ShowUnread() tea.Cmd {
	return m.SearchFor("")
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Filtered reports whether search results are on display.
func (m Model) Filtered() bool {
	return m.query != ""
}

// Err returns the error of the last load, if any.
func (m Model) Err() string {
	return m.err
}

// Load returns a command fetching the unread list, or the search results
// when a query is active.
func (m *Model) Load() tea.Cmd {
	m.loading = true
	src := m.source
	query := m.query
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if query == "" {
			return LoadedMsg{Result: src.ListUnread(ctx, 0)}
		}
		return LoadedMsg{Query: query, Result: src.Search(ctx, query)}
	}
}

// View renders the inbox.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return style.Render("Loading mail...")
	case m.err != "":
		return style.Render("Could not load mail.\n\n" + m.err)
	case m.query != "":
		return style.Render("No messages match " + m.query + ".\nPress esc to go back to unread.")
	default:
		return style.Render("Inbox zero. Nothing unread.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}

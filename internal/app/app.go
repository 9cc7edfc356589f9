package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/keys"
	appsync "github.com/nhle/email-copilot/internal/sync"
	"github.com/nhle/email-copilot/internal/theme"
	"github.com/nhle/email-copilot/internal/ui"
	"github.com/nhle/email-copilot/internal/ui/command"
	helpview "github.com/nhle/email-copilot/internal/ui/help"
	"github.com/nhle/email-copilot/internal/ui/inbox"
	"github.com/nhle/email-copilot/internal/ui/reader"
	"github.com/nhle/email-copilot/internal/ui/setup"
)

// Gateway is the subset of gateway operations the terminal UI drives.
type Gateway interface {
	inbox.Source
	AuthStatus(ctx context.Context) gateway.AuthStatus
	DraftReply(ctx context.Context, id string) gateway.Draft
	RegenerateWithFeedback(ctx context.Context, id, feedback string) gateway.Draft
	SaveDraft(ctx context.Context, to, subject, body string) gateway.Delivery
	ConfigureApplication(ctx context.Context, clientID, clientSecret string) gateway.Message
	SetPasswordAccount(ctx context.Context, email, password, imapHost string, imapPort int, smtpHost string, smtpPort int) gateway.Message
	RecordStyleFeedback(ctx context.Context, kind, value string) gateway.Style
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewReader
	ViewHelp
	ViewSetup
	ViewCommand
)

// Model is the root Bubble Tea model that manages view routing and
// layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	gateway      Gateway
	keys         *keys.KeyMap
	inboxView    inbox.Model
	readerView   reader.Model
	helpView     helpview.Model
	setupView    setup.Model
	commandView  command.Model
	poller       *appsync.Poller
	pollEvery    time.Duration
	ready        bool
	startSetup   bool
	unreadCount  int
	account      string
	notice       string
	errMessage   string
}

// Option configures the root model.
type Option func(*Model)

// WithSetup opens the account setup form on start.
func WithSetup() Option {
	return func(m *Model) { m.startSetup = true }
}

// WithPollInterval sets how often unread mail is checked in the
// background.
func WithPollInterval(d time.Duration) Option {
	return func(m *Model) { m.pollEvery = d }
}

// openSetupMsg switches to the setup view.
type openSetupMsg struct{}

// New creates the root application model.
func New(gw Gateway, opts ...Option) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		currentView: ViewList,
		gateway:     gw,
		keys:        k,
		inboxView:   inbox.New(gw, k, 80, 24),
		readerView:  reader.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		setupView:   setup.New(80, 24),
		commandView: command.New(80, 24),
		account:     "connecting...",
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.poller = appsync.New(gw, m.pollEvery)
	return m
}

// Init loads the account status and the unread list.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.poller.Start(), m.loadAuthStatus()}
	if m.startSetup {
		cmds = append(cmds, func() tea.Msg { return openSetupMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.inboxView.SetSize(msg.Width, h)
		m.readerView.SetSize(msg.Width, h)
		m.helpView.SetSize(msg.Width, h)
		m.setupView.SetSize(msg.Width, h)
		m.commandView.SetSize(msg.Width, h)
		return m.updateActiveView(msg)

	case openSetupMsg:
		m.previousView = ViewList
		m.currentView = ViewSetup
		cmd := m.setupView.Init()
		return m, cmd

	case authStatusMsg:
		m.applyAuthStatus(msg.status)
		return m, nil

	case appsync.ResultMsg:
		wait := m.poller.WaitForNextResult()
		if msg.Result.Failed() {
			m.setError(msg.Result.Error)
			return m, wait
		}
		m.unreadCount = len(msg.Result.Emails)
		if msg.NewCount > 0 {
			m.setNotice(fmt.Sprintf("%d new unread message(s)", msg.NewCount))
		}
		if m.inboxView.Filtered() || m.inboxView.Searching() {
			return m, wait
		}
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(inbox.LoadedMsg{Result: msg.Result})
		return m, tea.Batch(cmd, wait)

	case inbox.LoadedMsg:
		if msg.Query == "" && !msg.Result.Failed() {
			m.unreadCount = len(msg.Result.Emails)
		}
		if msg.Result.Failed() {
			m.setError(msg.Result.Error)
		}
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		return m, cmd

	case inbox.OpenMsg:
		m.previousView = m.currentView
		m.currentView = ViewReader
		m.readerView.Open(msg.Email)
		m.clearStatus()
		return m, nil

	case reader.BackMsg:
		m.currentView = ViewList
		return m, nil

	case reader.ComposeMsg:
		m.setNotice("Composing reply...")
		return m, m.compose(msg.EmailID, msg.Feedback)

	case reader.DraftLoadedMsg:
		if msg.Draft.Failed() {
			m.setError(msg.Draft.Error)
		} else {
			m.setNotice("Draft ready: w to save, s for a shorter version")
		}
		var cmd tea.Cmd
		m.readerView, cmd = m.readerView.Update(msg)
		return m, cmd

	case reader.SaveMsg:
		m.setNotice("Saving draft...")
		return m, m.saveDraft(msg)

	case deliveryMsg:
		if msg.delivery.Success {
			m.setNotice(msg.delivery.Message)
		} else {
			m.setError(msg.delivery.Message)
		}
		return m, nil

	case setup.IdentitySubmittedMsg:
		m.currentView = ViewList
		return m, m.configureIdentity(msg)

	case setup.AccountSubmittedMsg:
		m.currentView = ViewList
		return m, m.configureAccount(msg)

	case setup.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case command.Msg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case styleMsg:
		if msg.result.Failed() {
			m.setError(msg.result.Error)
		} else {
			m.setNotice(msg.result.Message)
		}
		return m, nil

	case configuredMsg:
		if msg.result.Failed() {
			m.setError(msg.result.Error)
			return m, nil
		}
		m.setNotice(msg.result.Message)
		cmd := tea.Batch(m.loadAuthStatus(), m.inboxView.Load())
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.poller.Stop()
			return m, tea.Quit
		}
		if m.capturesInput() {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewList {
				m.poller.Stop()
				return m, tea.Quit
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewList || m.currentView == ViewReader {
				m.previousView = m.currentView
				m.currentView = ViewCommand
				cmd := m.commandView.Focus()
				return m, cmd
			}

		case key.Matches(msg, m.keys.Setup):
			if m.currentView == ViewList {
				return m.Update(openSetupMsg{})
			}
		}
	}

	return m.updateActiveView(msg)
}

// capturesInput reports whether keys belong to a text field rather than
// the global bindings.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewSetup, ViewCommand:
		return true
	case ViewList:
		return m.inboxView.Searching()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewReader:
		m.readerView, cmd = m.readerView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m *Model) applyAuthStatus(st gateway.AuthStatus) {
	switch {
	case st.Error != "":
		m.account = "not connected"
		m.setError(st.Error)
	case st.Authenticated:
		m.account = st.Email
		if m.account == "" {
			m.account = "connected"
		}
	default:
		m.account = "not connected"
		m.setNotice(st.Message + " (press c to configure)")
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.errMessage = ""
}

func (m *Model) setError(s string) {
	m.errMessage = s
	m.notice = ""
}

func (m *Model) clearStatus() {
	m.notice = ""
	m.errMessage = ""
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "Email Copilot"
	if m.unreadCount > 0 {
		title = fmt.Sprintf("Email Copilot [%d unread]", m.unreadCount)
	}
	header := m.layout.RenderHeader(title, m.account)
	statusBar := m.layout.RenderStatusBar(m.statusText())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.inboxView.View()
	case ViewReader:
		return m.readerView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSetup:
		return m.setupView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// statusText returns the latest error or notice, falling back to key
// hints for the active view.
func (m Model) statusText() string {
	if m.errMessage != "" {
		return theme.ErrorStyle.Render(m.errMessage)
	}
	if m.notice != "" {
		return theme.NoticeStyle.Render(m.notice)
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewReader:
		return "esc back | d draft | s shorter | w save draft | j/k scroll"
	case ViewSetup:
		return "enter next | esc cancel"
	case ViewCommand:
		return "enter execute | esc cancel"
	default:
		if m.inboxView.Searching() {
			return "enter search | esc cancel"
		}
		return "q quit | ? help | / search | r refresh | c configure | : command | enter open"
	}
}

// executeCommand runs a command palette entry.
func (m *Model) executeCommand(c command.Msg) tea.Cmd {
	switch c.Name {
	case "refresh", "sync", "r":
		m.currentView = ViewList
		return m.inboxView.Load()
	case "search", "s":
		if c.Arg == "" {
			m.setError("search needs a query")
			return nil
		}
		m.currentView = ViewList
		return m.inboxView.SearchFor(c.Arg)
	case "unread", "inbox":
		m.currentView = ViewList
		return m.inboxView.ShowUnread()
	case "tone", "greeting", "closing":
		return m.recordStyle(c.Name, c.Arg)
	case "setup", "configure", "config":
		return func() tea.Msg { return openSetupMsg{} }
	case "help":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case "quit", "q":
		m.poller.Stop()
		return tea.Quit
	default:
		m.setError("unknown command: " + c.Name)
		return nil
	}
}

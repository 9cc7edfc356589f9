package setup

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// Mode is the step the setup view is on.
type Mode int

const (
	ModeChoose   Mode = iota // pick identity or password account
	ModeIdentity             // OAuth application identity form
	ModeAccount              // password account form
)

// Setup choices.
const (
	ChoiceIdentity = "identity"
	ChoiceAccount  = "account"
)

// IdentitySubmittedMsg carries the OAuth client credentials.
type IdentitySubmittedMsg struct {
	ClientID     string
	ClientSecret string
}

// AccountSubmittedMsg carries a password account.
type AccountSubmittedMsg struct {
	Email    string
	Password string
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
}

// CancelMsg signals the parent to close the setup view.
type CancelMsg struct{}

// values receives the form input. Forms bind to its fields, so it lives
// behind a pointer shared by every copy of Model.
type values struct {
	choice       string
	clientID     string
	clientSecret string
	email        string
	password     string
	imapHost     string
	imapPort     string
	smtpHost     string
	smtpPort     string
}

// Model is the account setup view.
type Model struct {
	mode   Mode
	form   *huh.Form
	v      *values
	width  int
	height int
}

// New creates the setup view.
func New(width, height int) Model {
	return Model{v: &values{}, width: width, height: height}
}

// Init starts at the choice step.
func (m *Model) Init() tea.Cmd {
	m.mode = ModeChoose
	m.v = &values{choice: ChoiceIdentity}
	m.form = m.buildChoiceForm()
	return m.form.Init()
}

// Mode returns the current step.
func (m Model) Mode() Mode {
	return m.mode
}

// Update handles messages for the setup view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	case huh.StateCompleted:
		return m.complete()
	}
	return m, cmd
}

func (m Model) complete() (Model, tea.Cmd) {
	switch m.mode {
	case ModeChoose:
		if m.v.choice == ChoiceAccount {
			m.mode = ModeAccount
			m.v.imapPort, m.v.smtpPort = "993", "587"
			m.form = m.buildAccountForm()
		} else {
			m.mode = ModeIdentity
			m.form = m.buildIdentityForm()
		}
		cmd := m.form.Init()
		return m, cmd

	case ModeIdentity:
		m.form = nil
		out := IdentitySubmittedMsg{
			ClientID:     strings.TrimSpace(m.v.clientID),
			ClientSecret: strings.TrimSpace(m.v.clientSecret),
		}
		return m, func() tea.Msg { return out }

	default:
		m.form = nil
		imapPort, _ := strconv.Atoi(m.v.imapPort)
		smtpPort, _ := strconv.Atoi(m.v.smtpPort)
		out := AccountSubmittedMsg{
			Email:    strings.TrimSpace(m.v.email),
			Password: m.v.password,
			IMAPHost: strings.TrimSpace(m.v.imapHost),
			IMAPPort: imapPort,
			SMTPHost: strings.TrimSpace(m.v.smtpHost),
			SMTPPort: smtpPort,
		}
		return m, func() tea.Msg { return out }
	}
}

func (m *Model) buildChoiceForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should Email Copilot reach your mailbox?").
				Options(
					huh.NewOption("Google account (OAuth2 application identity)", ChoiceIdentity),
					huh.NewOption("Any IMAP/SMTP server (password)", ChoiceAccount),
				).
				Value(&m.v.choice),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildIdentityForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Client ID").
				Description("OAuth2 client ID from the Google Cloud console").
				Placeholder("1234.apps.googleusercontent.com").
				Value(&m.v.clientID).
				Validate(validateRequired("Client ID")),
			huh.NewInput().
				Title("Client Secret").
				EchoMode(huh.EchoModePassword).
				Value(&m.v.clientSecret).
				Validate(validateRequired("Client Secret")),
		),
	).WithWidth(m.formWidth())
}

func (m *Model) buildAccountForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("me@example.com").
				Value(&m.v.email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.v.password).
				Validate(validateRequired("Password")),
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&m.v.imapHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Value(&m.v.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Placeholder("smtp.example.com").
				Value(&m.v.smtpHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Value(&m.v.smtpPort).
				Validate(validatePort),
		),
	).WithWidth(m.formWidth())
}

// View renders the active form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return m.form.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("port is required")
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

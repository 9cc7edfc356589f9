package setup

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePort(t *testing.T) {
	assert.NoError(t, validatePort("993"))
	assert.NoError(t, validatePort(" 587 "))
	assert.Error(t, validatePort(""))
	assert.Error(t, validatePort("imap"))
	assert.Error(t, validatePort("70000"))
	assert.Error(t, validateRequired("Email")("  "))
}

func TestChooseAccountThenSubmit(t *testing.T) {
	m := New(80, 24)
	require.NotNil(t, m.Init())
	assert.Equal(t, ModeChoose, m.Mode())

	m.v.choice = ChoiceAccount
	m, cmd := m.complete()
	assert.Equal(t, ModeAccount, m.Mode())
	assert.NotNil(t, cmd)
	assert.Equal(t, "993", m.v.imapPort)
	assert.Equal(t, "587", m.v.smtpPort)

	m.v.email = " me@example.com "
	m.v.password = "secret"
	m.v.imapHost = "imap.example.com"
	m.v.smtpHost = "smtp.example.com"
	m.v.smtpPort = "465"
	_, cmd = m.complete()
	require.NotNil(t, cmd)
	assert.Equal(t, AccountSubmittedMsg{
		Email:    "me@example.com",
		Password: "secret",
		IMAPHost: "imap.example.com",
		IMAPPort: 993,
		SMTPHost: "smtp.example.com",
		SMTPPort: 465,
	}, cmd())
}

func TestChooseIdentityThenSubmit(t *testing.T) {
	m := New(80, 24)
	m.Init()

	m, _ = m.complete()
	assert.Equal(t, ModeIdentity, m.Mode())

	m.v.clientID = "id.apps.googleusercontent.com "
	m.v.clientSecret = " shh"
	_, cmd := m.complete()
	require.NotNil(t, cmd)
	assert.Equal(t, IdentitySubmittedMsg{ClientID: "id.apps.googleusercontent.com", ClientSecret: "shh"}, cmd())
}

func TestEscCancels(t *testing.T) {
	m := New(80, 24)
	m.Init()

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
	assert.Empty(t, m.View())
}

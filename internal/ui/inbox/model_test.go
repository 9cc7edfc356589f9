package inbox_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/keys"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/ui/inbox"
)

type fakeSource struct {
	emails  []model.EmailMetadata
	queries []string
}

func (f *fakeSource) ListUnread(context.Context, int) gateway.EmailList {
	return gateway.EmailList{Emails: f.emails}
}

func (f *fakeSource) Search(_ context.Context, query string) gateway.EmailList {
	f.queries = append(f.queries, query)
	return gateway.EmailList{Emails: f.emails[:1]}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInbox_LoadAndOpen(t *testing.T) {
	src := &fakeSource{emails: mail.SampleMessages(time.Now())}
	m := inbox.New(src, keys.DefaultKeyMap(), 80, 24)

	msg := m.Init()()
	loaded, ok := msg.(inbox.LoadedMsg)
	require.True(t, ok)
	assert.Empty(t, loaded.Query)
	assert.Len(t, loaded.Result.Emails, 3)

	m, _ = m.Update(loaded)
	assert.Empty(t, m.Err())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	open, ok := cmd().(inbox.OpenMsg)
	require.True(t, ok)
	assert.Equal(t, "email_1", open.Email.ID)
}

func TestInbox_Search(t *testing.T) {
	src := &fakeSource{emails: mail.SampleMessages(time.Now())}
	m := inbox.New(src, keys.DefaultKeyMap(), 80, 24)

	m, _ = m.Update(runes("/"))
	require.True(t, m.Searching())

	m, _ = m.Update(runes("Q1"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Searching())
	require.NotNil(t, cmd)

	loaded, ok := cmd().(inbox.LoadedMsg)
	require.True(t, ok)
	assert.Equal(t, "Q1", loaded.Query)
	assert.Equal(t, []string{"Q1"}, src.queries)

	m, _ = m.Update(loaded)
	assert.Contains(t, m.View(), "Search: Q1")

	// esc leaves search results for the unread list
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	back, ok := cmd().(inbox.LoadedMsg)
	require.True(t, ok)
	assert.Empty(t, back.Query)
}

func TestInbox_EmptyStates(t *testing.T) {
	m := inbox.New(&fakeSource{}, keys.DefaultKeyMap(), 80, 24)

	m, _ = m.Update(inbox.LoadedMsg{Result: gateway.EmailList{Emails: []model.EmailMetadata{}}})
	assert.Contains(t, m.View(), "Inbox zero")

	m, _ = m.Update(inbox.LoadedMsg{Result: gateway.EmailList{Emails: []model.EmailMetadata{}, Error: "mail server down"}})
	assert.Equal(t, "mail server down", m.Err())
	assert.Contains(t, m.View(), "mail server down")
}

func TestItem(t *testing.T) {
	it := inbox.Item{Email: model.EmailMetadata{Sender: "Jane <jane@x.com>"}}
	assert.Equal(t, "(no subject)", it.Title())
	assert.Contains(t, it.Description(), "Jane <jane@x.com>")
}

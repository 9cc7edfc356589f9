package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/ui/reader"
	"github.com/nhle/email-copilot/internal/ui/setup"
)

// requestTimeout bounds a single gateway call made from the UI.
const requestTimeout = time.Minute

// authStatusMsg carries the account status shown in the header.
type authStatusMsg struct {
	status gateway.AuthStatus
}

// deliveryMsg is sent after a draft is saved.
type deliveryMsg struct {
	delivery gateway.Delivery
}

// styleMsg is sent after a writing preference was recorded.
type styleMsg struct {
	result gateway.Style
}

// configuredMsg is sent after the setup view's input was persisted.
type configuredMsg struct {
	result gateway.Message
}

// call runs fn with a bounded context.
func call[T any](fn func(ctx context.Context) T) T {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return fn(ctx)
}

func (m Model) loadAuthStatus() tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		return authStatusMsg{status: call(gw.AuthStatus)}
	}
}

// compose drafts a reply, or regenerates it when feedback is set.
func (m Model) compose(id, feedback string) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		d := call(func(ctx context.Context) gateway.Draft {
			if feedback == "" {
				return gw.DraftReply(ctx, id)
			}
			return gw.RegenerateWithFeedback(ctx, id, feedback)
		})
		return reader.DraftLoadedMsg{Draft: d}
	}
}

func (m Model) saveDraft(msg reader.SaveMsg) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		d := call(func(ctx context.Context) gateway.Delivery {
			return gw.SaveDraft(ctx, msg.To, msg.Subject, msg.Body)
		})
		return deliveryMsg{delivery: d}
	}
}

func (m Model) configureIdentity(msg setup.IdentitySubmittedMsg) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		r := call(func(ctx context.Context) gateway.Message {
			return gw.ConfigureApplication(ctx, msg.ClientID, msg.ClientSecret)
		})
		return configuredMsg{result: r}
	}
}

func (m Model) configureAccount(msg setup.AccountSubmittedMsg) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		r := call(func(ctx context.Context) gateway.Message {
			return gw.SetPasswordAccount(ctx, msg.Email, msg.Password, msg.IMAPHost, msg.IMAPPort, msg.SMTPHost, msg.SMTPPort)
		})
		return configuredMsg{result: r}
	}
}

func (m Model) recordStyle(kind, value string) tea.Cmd {
	gw := m.gateway
	return func() tea.Msg {
		r := call(func(ctx context.Context) gateway.Style {
			return gw.RecordStyleFeedback(ctx, kind, value)
		})
		return styleMsg{result: r}
	}
}

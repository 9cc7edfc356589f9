package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/theme"
)

// Item wraps an email so it can be used in a bubbles/list.
type Item struct {
	Email model.EmailMetadata
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Email.Subject }

// Title returns the subject, or a placeholder for empty subjects.
func (i Item) Title() string {
	if strings.TrimSpace(i.Email.Subject) == "" {
		return "(no subject)"
	}
	return i.Email.Subject
}

// Description returns the sender and retrieval time.
func (i Item) Description() string {
	return i.Email.Sender + " | " + relativeTime(i.Email.Timestamp)
}

// Delegate renders one email per line.
type Delegate struct{}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

// Render draws the subject line and a muted sender line.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}

	marker := " "
	if it.Email.IsUnread {
		marker = theme.UnreadMarker
	}

	width := m.Width() - 4
	subject := truncate(it.Title(), width-2)
	meta := truncate(it.Description(), width)

	style := theme.ListItemStyle
	if index == m.Index() {
		style = theme.SelectedItemStyle
	}

	line := lipgloss.JoinVertical(lipgloss.Left,
		marker+" "+subject,
		"  "+theme.MutedStyle.Render(meta),
	)
	fmt.Fprint(w, style.Render(line))
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

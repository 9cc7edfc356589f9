package command_test

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/ui/command"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want command.Msg
	}{
		{"refresh", command.Msg{Name: "refresh"}},
		{"  Search  from:boss Q1 ", command.Msg{Name: "search", Arg: "from:boss Q1"}},
		{"closing Cheers,", command.Msg{Name: "closing", Arg: "Cheers,"}},
		{"", command.Msg{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, command.Parse(tt.line), tt.line)
	}
}

func TestPaletteEmits(t *testing.T) {
	m := command.New(80, 24)
	m.Focus()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("tone casual")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, command.Msg{Name: "tone", Arg: "casual"}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, command.CancelMsg{}, cmd())
}

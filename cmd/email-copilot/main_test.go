package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/model"
)

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		redirect string
		want     string
		wantErr  bool
	}{
		{"http://localhost:8765/oauth/callback", "localhost:8765", false},
		{"http://127.0.0.1/oauth/callback", "127.0.0.1:80", false},
		{"https://mail.example.com/oauth/callback", "mail.example.com:443", false},
		{"/oauth/callback", "", true},
	}
	for _, tt := range tests {
		got, err := callbackAddr(tt.redirect)
		if tt.wantErr {
			assert.Error(t, err, tt.redirect)
			continue
		}
		require.NoError(t, err, tt.redirect)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrintPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPayload(&buf, gateway.Message{Message: "ok"}))
	assert.Contains(t, buf.String(), `"message": "ok"`)

	buf.Reset()
	err := printPayload(&buf, gateway.Message{Error: "boom"})
	assert.ErrorIs(t, err, errPayloadFailed)
	assert.Contains(t, buf.String(), "boom")
}

func TestNewEnv_FixtureBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	stateDir := filepath.Join(dir, "state")
	yaml := "storage:\n  dir: " + stateDir + "\n  secrets: file\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	var logs bytes.Buffer
	e, err := newEnv(log.New(&logs), cfgPath, model.MailBackendFixture)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	_, err = os.Stat(filepath.Join(stateDir, "email-copilot.db"))
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := newUnreadCmd(func() *env { return e })
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--limit", "2"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"id": "email_2"`)
	assert.Contains(t, out.String(), `"id": "email_3"`)
	assert.NotContains(t, out.String(), `"id": "email_1"`)
}

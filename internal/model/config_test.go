package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, MailBackendIMAP, cfg.Mail.Backend)
	assert.Equal(t, "imap.gmail.com:993", cfg.Mail.IMAPAddr)
	assert.Equal(t, "[Gmail]/Drafts", cfg.Mail.DraftsMailbox)
	assert.Equal(t, 50, cfg.Mail.UnreadLimit)
	assert.Equal(t, 10, cfg.Mail.SearchLimit)
	assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Mail.PollInterval)
	assert.Equal(t, "http://localhost:8765/oauth/callback", cfg.OAuth.RedirectURL)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("EMAIL_COPILOT_MAIL_BACKEND", "fixture")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, MailBackendFixture, cfg.Mail.Backend)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mail:\n  backend: pigeon\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "pigeon")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.Mail.Backend = MailBackendFixture
	cfg.Mail.Retries = 5

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Dir, got.Storage.Dir)
	assert.Equal(t, MailBackendFixture, got.Mail.Backend)
	assert.Equal(t, 5, got.Mail.Retries)
}

package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Mail backends selectable through mail.backend.
const (
	MailBackendIMAP    = "imap"
	MailBackendFixture = "fixture"
)

// Secret backends selectable through storage.secrets.
const (
	SecretsKeyring = "keyring"
	SecretsFile    = "file"
)

// StorageConfig says where durable state lives.
type StorageConfig struct {
	// Dir holds the SQLite database and the file keyring fallback.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Secrets selects the keyring backend: "keyring" uses the OS keychain
	// when available, "file" forces the encrypted file backend.
	Secrets string `mapstructure:"secrets" yaml:"secrets"`
}

// DatabasePath returns the SQLite database location inside Dir.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.Dir, "email-copilot.db")
}

// OAuthConfig holds the OAuth2 client settings that are not secrets.
type OAuthConfig struct {
	// RedirectURL must match the redirect URI registered with the provider.
	RedirectURL string        `mapstructure:"redirect_url" yaml:"redirect_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MailConfig holds the mail-provider endpoints and limits.
type MailConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	IMAPAddr      string        `mapstructure:"imap_addr" yaml:"imap_addr"`
	SMTPAddr      string        `mapstructure:"smtp_addr" yaml:"smtp_addr"`
	Mailbox       string        `mapstructure:"mailbox" yaml:"mailbox"`
	DraftsMailbox string        `mapstructure:"drafts_mailbox" yaml:"drafts_mailbox"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries       int           `mapstructure:"retries" yaml:"retries"`
	UnreadLimit   int           `mapstructure:"unread_limit" yaml:"unread_limit"`
	SearchLimit   int           `mapstructure:"search_limit" yaml:"search_limit"`

	// PollInterval is how often the inbox checks for new unread mail.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	OAuth   OAuthConfig   `mapstructure:"oauth" yaml:"oauth"`
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigDir returns ~/.config/email-copilot, or the working
// directory when no home directory is known.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "email-copilot")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/email-copilot/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Storage: StorageConfig{
			Dir:     DefaultConfigDir(),
			Secrets: SecretsKeyring,
		},
		OAuth: OAuthConfig{
			RedirectURL: "http://localhost:8765/oauth/callback",
			Timeout:     30 * time.Second,
		},
		Mail: MailConfig{
			Backend:       MailBackendIMAP,
			IMAPAddr:      "imap.gmail.com:993",
			SMTPAddr:      "smtp.gmail.com:587",
			Mailbox:       "INBOX",
			DraftsMailbox: "[Gmail]/Drafts",
			Timeout:       30 * time.Second,
			Retries:       3,
			UnreadLimit:   50,
			SearchLimit:   10,
			PollInterval:  2 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.secrets", d.Storage.Secrets)
	v.SetDefault("oauth.redirect_url", d.OAuth.RedirectURL)
	v.SetDefault("oauth.timeout", d.OAuth.Timeout)
	v.SetDefault("mail.backend", d.Mail.Backend)
	v.SetDefault("mail.imap_addr", d.Mail.IMAPAddr)
	v.SetDefault("mail.smtp_addr", d.Mail.SMTPAddr)
	v.SetDefault("mail.mailbox", d.Mail.Mailbox)
	v.SetDefault("mail.drafts_mailbox", d.Mail.DraftsMailbox)
	v.SetDefault("mail.timeout", d.Mail.Timeout)
	v.SetDefault("mail.retries", d.Mail.Retries)
	v.SetDefault("mail.unread_limit", d.Mail.UnreadLimit)
	v.SetDefault("mail.search_limit", d.Mail.SearchLimit)
	v.SetDefault("mail.poll_interval", d.Mail.PollInterval)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with EMAIL_COPILOT_ override file values
// (EMAIL_COPILOT_MAIL_BACKEND=fixture). A missing file yields defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EMAIL_COPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *AppConfig) Validate() error {
	switch c.Mail.Backend {
	case MailBackendIMAP, MailBackendFixture:
	default:
		return fmt.Errorf("unknown mail backend %q", c.Mail.Backend)
	}
	switch c.Storage.Secrets {
	case SecretsKeyring, SecretsFile:
	default:
		return fmt.Errorf("unknown secrets backend %q", c.Storage.Secrets)
	}
	if c.Storage.Dir == "" {
		return errors.New("storage.dir is empty")
	}
	if c.OAuth.RedirectURL == "" {
		return errors.New("oauth.redirect_url is empty")
	}
	if c.Mail.Retries < 1 {
		c.Mail.Retries = 1
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("storage", cfg.Storage)
	v.Set("oauth", cfg.OAuth)
	v.Set("mail", cfg.Mail)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/email-copilot/internal/auth"
	"github.com/nhle/email-copilot/internal/credential"
	"github.com/nhle/email-copilot/internal/draft"
	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/store"
	"github.com/nhle/email-copilot/internal/style"
)

// env holds everything a command needs once configuration is loaded.
type env struct {
	cfg   *model.AppConfig
	log   *log.Logger
	store *store.SQLiteStore
	svc   *gateway.Service
}

func (r *env) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

func main() {
	logger := newLogger()
	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("email-copilot failed", "error", err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "email-copilot",
		ReportTimestamp: true,
	})
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	var (
		configPath string
		backend    string
		rt         *env
	)

	root := &cobra.Command{
		Use:           "email-copilot",
		Short:         "Personal mail gateway: read, search, draft and send from one mailbox",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			rt, err = newEnv(logger, configPath, backend)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if rt == nil {
				return nil
			}
			return rt.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to config.yaml")
	root.PersistentFlags().StringVar(&backend, "backend", "", "mail backend override (imap|fixture)")

	get := func() *env { return rt }
	root.AddCommand(
		newServeCmd(get),
		newInboxCmd(get),
		newSetupCmd(get),
		newAuthCmd(get),
		newUnreadCmd(get),
		newSearchCmd(get),
		newShowCmd(get),
		newDraftCmd(get),
		newSendCmd(get),
		newSaveDraftCmd(get),
		newFeedbackCmd(get),
		newStyleCmd(get),
	)
	return root
}

// newEnv loads configuration and wires the gateway.
func newEnv(logger *log.Logger, configPath, backend string) (*env, error) {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("loading .env", "error", err)
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Mail.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.Warn("unknown log level, using info", "level", cfg.Log.Level)
	}

	if err := os.MkdirAll(cfg.Storage.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage dir %s: %w", cfg.Storage.Dir, err)
	}

	db, err := store.NewSQLiteStore(cfg.Storage.DatabasePath())
	if err != nil {
		return nil, err
	}

	authOpts := []auth.Option{auth.WithLogger(logger)}
	vault, err := credential.OpenVault(cfg.Storage)
	if err != nil {
		logger.Warn("secrets vault unavailable; password accounts are disabled", "error", err)
	} else {
		authOpts = append(authOpts, auth.WithVault(vault))
	}
	authStore := auth.NewStore(db, cfg.OAuth, authOpts...)

	var mailbox mail.Mailbox
	switch cfg.Mail.Backend {
	case model.MailBackendFixture:
		logger.Info("using sample mailbox")
		mailbox = mail.NewSampleClient()
	default:
		mailbox = mail.NewIMAPClient(cfg.Mail, authStore, logger)
	}

	profile := style.NewProfile(db, logger)
	svc := gateway.NewService(authStore, mailbox, profile, draft.NewComposer(profile), logger)

	return &env{cfg: cfg, log: logger, store: db, svc: svc}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

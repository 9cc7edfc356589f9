package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nhle/email-copilot/internal/app"
	"github.com/nhle/email-copilot/internal/mcpserver"
)

func newServeCmd(get func() *env) *cobra.Command {
	var noCallback bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mail tools over MCP stdio and listen for the OAuth redirect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := get()

			var callback *http.Server
			if !noCallback {
				addr, err := callbackAddr(e.cfg.OAuth.RedirectURL)
				if err != nil {
					return err
				}
				callback = &http.Server{
					Addr:              addr,
					Handler:           mcpserver.CallbackHandler(e.svc),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					e.log.Info("oauth callback listening", "addr", addr, "path", mcpserver.CallbackPath)
					if err := callback.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						e.log.Error("oauth callback server stopped", "error", err)
					}
				}()
			}

			e.log.Info("serving MCP over stdio", "server", mcpserver.Name, "version", mcpserver.Version)
			err := server.ServeStdio(mcpserver.New(e.svc))

			if callback != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if shutdownErr := callback.Shutdown(ctx); shutdownErr != nil {
					e.log.Warn("oauth callback shutdown", "error", shutdownErr)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noCallback, "no-callback", false, "do not start the OAuth callback listener")
	return cmd
}

// callbackAddr derives the listen address from the registered redirect
// URI.
func callbackAddr(redirect string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("parsing oauth.redirect_url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("oauth.redirect_url %q has no host", redirect)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func newInboxCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Browse unread mail and draft replies in the terminal",
		RunE: func(*cobra.Command, []string) error {
			return runTUI(get())
		},
	}
}

func newSetupCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure the OAuth application identity or a password account",
		RunE: func(*cobra.Command, []string) error {
			return runTUI(get(), app.WithSetup())
		},
	}
}

// runTUI owns the terminal, so log lines go to a file in the storage
// directory while it runs.
func runTUI(e *env, opts ...app.Option) error {
	ctx, cancel := signalContext()
	defer cancel()

	logPath := filepath.Join(e.cfg.Storage.Dir, "email-copilot.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer f.Close()
	e.log.SetOutput(f)
	defer e.log.SetOutput(os.Stderr)

	opts = append(opts, app.WithPollInterval(e.cfg.Mail.PollInterval))
	p := tea.NewProgram(app.New(e.svc, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running inbox: %w", err)
	}
	return nil
}

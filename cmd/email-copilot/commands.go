package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/email-copilot/internal/gateway"
)

// failer is implemented by every gateway payload.
type failer interface {
	Failed() bool
}

// printPayload writes p as indented JSON. A failed payload still prints
// and turns into a non-zero exit.
func printPayload(w io.Writer, p failer) error {
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(w, string(out))
	if p.Failed() {
		return errPayloadFailed
	}
	return nil
}

var errPayloadFailed = errors.New("operation failed; see output")

// runPayload runs op under a signal-aware context and prints its payload.
func runPayload[T failer](cmd *cobra.Command, op func(ctx context.Context, svc *gateway.Service) T, get func() *env) error {
	ctx, cancel := signalContext()
	defer cancel()
	return printPayload(cmd.OutOrStdout(), op(ctx, get().svc))
}

func newAuthCmd(get func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect and complete OAuth2 authorization",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show whether a mailbox is connected",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.AuthStatus {
					return svc.AuthStatus(ctx)
				}, get)
			},
		},
		&cobra.Command{
			Use:   "url",
			Short: "Print the consent URL to open in a browser",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.AuthorizationURL {
					return svc.AuthorizationURL(ctx)
				}, get)
			},
		},
		&cobra.Command{
			Use:   "exchange CODE",
			Short: "Exchange an authorization code for a stored credential",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Exchange {
					return svc.ExchangeCode(ctx, args[0])
				}, get)
			},
		},
	)
	return cmd
}

func newUnreadCmd(get func() *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "unread",
		Short: "List the most recent unread messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.EmailList {
				return svc.ListUnread(ctx, limit)
			}, get)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of messages (0 uses mail.unread_limit)")
	return cmd
}

func newSearchCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search the mailbox (Gmail query syntax when available)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.EmailList {
				return svc.Search(ctx, query)
			}, get)
		},
	}
}

func newShowCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one message without marking it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Email {
				return svc.FetchByID(ctx, args[0])
			}, get)
		},
	}
}

func newDraftCmd(get func() *env) *cobra.Command {
	var feedback string
	cmd := &cobra.Command{
		Use:   "draft ID",
		Short: "Compose a reply in the learned writing style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Draft {
				if feedback != "" {
					return svc.RegenerateWithFeedback(ctx, args[0], feedback)
				}
				return svc.DraftReply(ctx, args[0])
			}, get)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", `regenerate with feedback, e.g. "shorter"`)
	return cmd
}

// messageFlags are shared by send and save-draft.
type messageFlags struct {
	to      string
	subject string
	body    string
}

func (f *messageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "recipient address")
	cmd.Flags().StringVar(&f.subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&f.body, "body", "", `message body; "-" reads standard input`)
	_ = cmd.MarkFlagRequired("to")
}

func (f *messageFlags) readBody(in io.Reader) (string, error) {
	if f.body != "-" {
		return f.body, nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading body from stdin: %w", err)
	}
	return string(b), nil
}

func newSendCmd(get func() *env) *cobra.Command {
	var f messageFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message from the connected mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := f.readBody(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Delivery {
				return svc.SendEmail(ctx, f.to, f.subject, body)
			}, get)
		},
	}
	f.bind(cmd)
	return cmd
}

func newSaveDraftCmd(get func() *env) *cobra.Command {
	var f messageFlags
	cmd := &cobra.Command{
		Use:   "save-draft",
		Short: "Store a message in the drafts mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := f.readBody(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Delivery {
				return svc.SaveDraft(ctx, f.to, f.subject, body)
			}, get)
		},
	}
	f.bind(cmd)
	return cmd
}

func newFeedbackCmd(get func() *env) *cobra.Command {
	var draftPath, finalPath string
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Learn greeting and closing preferences from an edited draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draftText, err := os.ReadFile(draftPath)
			if err != nil {
				return fmt.Errorf("reading draft: %w", err)
			}
			finalText, err := os.ReadFile(finalPath)
			if err != nil {
				return fmt.Errorf("reading final text: %w", err)
			}
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Message {
				return svc.RecordEditFeedback(ctx, string(draftText), string(finalText))
			}, get)
		},
	}
	cmd.Flags().StringVar(&draftPath, "draft", "", "file holding the composed draft")
	cmd.Flags().StringVar(&finalPath, "final", "", "file holding the text that was sent")
	_ = cmd.MarkFlagRequired("draft")
	_ = cmd.MarkFlagRequired("final")
	return cmd
}

func newStyleCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "style KIND VALUE",
		Short: "Record a writing preference (kind: tone, greeting or closing)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayload(cmd, func(ctx context.Context, svc *gateway.Service) gateway.Style {
				return svc.RecordStyleFeedback(ctx, args[0], args[1])
			}, get)
		},
	}
}

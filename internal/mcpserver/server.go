// Package mcpserver publishes the gateway operations as MCP tools and
// serves the OAuth2 redirect.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nhle/email-copilot/internal/gateway"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "Email Copilot"
	Version = "1.0.0"
)

// New returns an MCP server exposing every gateway operation.
func New(svc *gateway.Service) *server.MCPServer {
	s := server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTools(Tools(svc)...)
	return s
}

type payload interface {
	Failed() bool
}

// result renders p as indented JSON; a payload carrying an error becomes a
// tool error so that clients can tell the two apart.
func result(p payload) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	if p.Failed() {
		return mcp.NewToolResultError(string(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func intArg(req mcp.CallToolRequest, name string) int {
	if v, ok := req.GetArguments()[name].(float64); ok {
		return int(v)
	}
	return 0
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return v
}

// required wraps a handler that needs the named string arguments.
func required(names []string, fn func(ctx context.Context, args []string, req mcp.CallToolRequest) (*mcp.CallToolResult, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make([]string, len(names))
		for i, n := range names {
			v, err := req.RequireString(n)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%s parameter is required and must be a string", n)), nil
			}
			args[i] = v
		}
		return fn(ctx, args, req)
	}
}

// Tools returns the tool definitions bound to svc.
func Tools(svc *gateway.Service) []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("get_auth_status",
				mcp.WithDescription("Report whether the mailbox is connected and where the OAuth application identity comes from."),
			),
			Handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.AuthStatus(ctx))
			},
		},
		{
			Tool: mcp.NewTool("get_authorization_url",
				mcp.WithDescription("Return the Google consent URL. Open it, approve access, then pass the code to exchange_code."),
			),
			Handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.AuthorizationURL(ctx))
			},
		},
		{
			Tool: mcp.NewTool("exchange_code",
				mcp.WithDescription("Exchange an authorization code for a stored credential."),
				mcp.WithString("code", mcp.Required(), mcp.Description("Authorization code from the OAuth redirect")),
			),
			Handler: required([]string{"code"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.ExchangeCode(ctx, a[0]))
			}),
		},
		{
			Tool: mcp.NewTool("configure_mcp_app",
				mcp.WithDescription("Store the OAuth client id and secret used for Google sign-in."),
				mcp.WithString("client_id", mcp.Required(), mcp.Description("OAuth client id")),
				mcp.WithString("client_secret", mcp.Required(), mcp.Description("OAuth client secret")),
			),
			Handler: required([]string{"client_id", "client_secret"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.ConfigureApplication(ctx, a[0], a[1]))
			}),
		},
		{
			Tool: mcp.NewTool("configure_email_account",
				mcp.WithDescription("Configure a password-based IMAP/SMTP account instead of Google sign-in."),
				mcp.WithString("email", mcp.Required(), mcp.Description("Mailbox address")),
				mcp.WithString("password", mcp.Required(), mcp.Description("Account or app password")),
				mcp.WithString("imap_host", mcp.Required(), mcp.Description("IMAP server host")),
				mcp.WithNumber("imap_port", mcp.Description("IMAP port (default 993)")),
				mcp.WithString("smtp_host", mcp.Required(), mcp.Description("SMTP server host")),
				mcp.WithNumber("smtp_port", mcp.Description("SMTP port (default 587)")),
			),
			Handler: required([]string{"email", "password", "imap_host", "smtp_host"}, func(ctx context.Context, a []string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.SetPasswordAccount(ctx, a[0], a[1], a[2], intArg(req, "imap_port"), a[3], intArg(req, "smtp_port")))
			}),
		},
		{
			Tool: mcp.NewTool("list_unread_emails",
				mcp.WithDescription("List the most recent unread emails without marking them read."),
				mcp.WithNumber("limit", mcp.Description("Maximum number of emails (default 50)")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.ListUnread(ctx, intArg(req, "limit")))
			},
		},
		{
			Tool: mcp.NewTool("search_emails",
				mcp.WithDescription("Search the inbox. Gmail search syntax is supported, with a plain keyword fallback."),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search query, e.g. 'from:boss has:attachment'")),
			),
			Handler: required([]string{"query"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.Search(ctx, a[0]))
			}),
		},
		{
			Tool: mcp.NewTool("get_email",
				mcp.WithDescription("Fetch one email by id."),
				mcp.WithString("email_id", mcp.Required(), mcp.Description("Email id as returned by the list and search tools")),
			),
			Handler: required([]string{"email_id"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.FetchByID(ctx, a[0]))
			}),
		},
		{
			Tool: mcp.NewTool("draft_reply",
				mcp.WithDescription("Compose a reply in the owner's writing style."),
				mcp.WithString("email_id", mcp.Required(), mcp.Description("Email to reply to")),
			),
			Handler: required([]string{"email_id"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.DraftReply(ctx, a[0]))
			}),
		},
		{
			Tool: mcp.NewTool("regenerate_draft",
				mcp.WithDescription("Compose the reply again taking feedback such as 'shorter' into account."),
				mcp.WithString("email_id", mcp.Required(), mcp.Description("Email to reply to")),
				mcp.WithString("feedback", mcp.Required(), mcp.Description("What to change")),
			),
			Handler: required([]string{"email_id", "feedback"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.RegenerateWithFeedback(ctx, a[0], a[1]))
			}),
		},
		{
			Tool: mcp.NewTool("save_draft",
				mcp.WithDescription("Save a plain-text draft to the drafts mailbox."),
				mcp.WithString("to", mcp.Required(), mcp.Description("Recipient email address")),
				mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Plain-text body")),
			),
			Handler: required([]string{"to", "subject", "body"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.SaveDraft(ctx, a[0], a[1], a[2]))
			}),
		},
		{
			Tool: mcp.NewTool("send_email",
				mcp.WithDescription("Send a plain-text email."),
				mcp.WithString("to", mcp.Required(), mcp.Description("Recipient email address")),
				mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Plain-text body")),
			),
			Handler: required([]string{"to", "subject", "body"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.SendEmail(ctx, a[0], a[1], a[2]))
			}),
		},
		{
			Tool: mcp.NewTool("record_edit_feedback",
				mcp.WithDescription("Learn greeting and closing preferences from how a draft was edited before sending."),
				mcp.WithString("original_draft", mcp.Description("The composed draft")),
				mcp.WithString("final_email", mcp.Required(), mcp.Description("The text that was actually sent")),
			),
			Handler: required([]string{"final_email"}, func(ctx context.Context, a []string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.RecordEditFeedback(ctx, stringArg(req, "original_draft"), a[0]))
			}),
		},
		{
			Tool: mcp.NewTool("record_style_feedback",
				mcp.WithDescription("Record an explicit writing preference: a tone marker, a greeting or a closing."),
				mcp.WithString("kind", mcp.Required(), mcp.Description("One of tone, greeting, closing")),
				mcp.WithString("value", mcp.Required(), mcp.Description("The preferred tone marker, greeting or closing")),
			),
			Handler: required([]string{"kind", "value"}, func(ctx context.Context, a []string, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(svc.RecordStyleFeedback(ctx, a[0], a[1]))
			}),
		},
	}
}

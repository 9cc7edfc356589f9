package mcpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/auth"
	"github.com/nhle/email-copilot/internal/draft"
	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/mcpserver"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/style"
	"github.com/nhle/email-copilot/tests/testutil"
)

func newService(t *testing.T) *gateway.Service {
	t.Helper()
	docs := testutil.NewTestStore(t)
	logger := log.New(io.Discard)
	a := auth.NewStore(docs, model.DefaultAppConfig().OAuth,
		auth.WithEnv(func(string) string { return "" }),
		auth.WithLogger(logger),
	)
	profile := style.NewProfile(docs, logger)
	return gateway.NewService(a, mail.NewSampleClient(), profile, draft.NewComposer(profile), logger)
}

func tools(t *testing.T) map[string]server.ServerTool {
	t.Helper()
	out := map[string]server.ServerTool{}
	for _, tool := range mcpserver.Tools(newService(t)) {
		out[tool.Tool.Name] = tool
	}
	return out
}

func call(t *testing.T, tool server.ServerTool, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = tool.Tool.Name
	req.Params.Arguments = args

	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func TestToolNames(t *testing.T) {
	got := tools(t)
	for _, name := range []string{
		"get_auth_status", "get_authorization_url", "exchange_code",
		"configure_mcp_app", "configure_email_account", "list_unread_emails",
		"search_emails", "get_email", "draft_reply", "regenerate_draft",
		"save_draft", "send_email", "record_edit_feedback",
		"record_style_feedback",
	} {
		assert.Contains(t, got, name)
	}
	assert.Len(t, got, 14)
	assert.NotNil(t, mcpserver.New(newService(t)))
}

func TestListUnreadTool(t *testing.T) {
	res, text := call(t, tools(t)["list_unread_emails"], map[string]any{"limit": float64(2)})
	assert.False(t, res.IsError)

	var out gateway.EmailList
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	require.Len(t, out.Emails, 2)
	assert.Equal(t, "email_2", out.Emails[0].ID)
}

func TestDraftReplyTool(t *testing.T) {
	res, text := call(t, tools(t)["draft_reply"], map[string]any{"email_id": "email_1"})
	assert.False(t, res.IsError)

	var out gateway.Draft
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "email_1", out.EmailID)
	assert.Contains(t, out.Content, "Hi boss,")
}

func TestRecordStyleFeedbackTool(t *testing.T) {
	res, text := call(t, tools(t)["record_style_feedback"], map[string]any{"kind": "greeting", "value": "Hey"})
	assert.False(t, res.IsError)

	var out gateway.Style
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	require.NotNil(t, out.Style)
	assert.Contains(t, out.Style.PreferredGreetings, "Hey")

	res, text = call(t, tools(t)["record_style_feedback"], map[string]any{"kind": "signature", "value": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "unknown feedback kind")
}

func TestMissingArgument(t *testing.T) {
	res, text := call(t, tools(t)["search_emails"], map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "query parameter is required")
}

func TestConfigurationErrorIsToolError(t *testing.T) {
	res, text := call(t, tools(t)["get_authorization_url"], nil)
	assert.True(t, res.IsError)
	assert.Contains(t, text, auth.RemedyConfigure)
}

func TestCallbackHandler(t *testing.T) {
	h := mcpserver.CallbackHandler(newService(t))

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"health", "/healthz", http.StatusOK, "ok"},
		{"no code", mcpserver.CallbackPath, http.StatusBadRequest, "No authorization code"},
		{"denied", mcpserver.CallbackPath + "?error=access_denied", http.StatusBadRequest, "access_denied"},
		{"exchange fails", mcpserver.CallbackPath + "?code=abc", http.StatusBadGateway, "Authentication failed"},
		{"forged state", mcpserver.CallbackPath + "?code=abc&state=forged", http.StatusBadGateway, "state does not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

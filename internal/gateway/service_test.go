package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/auth"
	"github.com/nhle/email-copilot/internal/draft"
	"github.com/nhle/email-copilot/internal/gateway"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/style"
	"github.com/nhle/email-copilot/tests/testutil"
)

type fakeAuthority struct {
	identity      *auth.ApplicationIdentity
	authenticated bool
	address       string
	legacy        *model.LegacyAccount
	savedLegacy   *model.LegacyAccount
	err           error
}

func (f *fakeAuthority) IsAuthenticated(context.Context) (bool, error) {
	return f.authenticated, nil
}

func (f *fakeAuthority) MailboxAddress(context.Context) (string, error) {
	return f.address, nil
}

func (f *fakeAuthority) Identity(context.Context) (*auth.ApplicationIdentity, error) {
	return f.identity, nil
}

func (f *fakeAuthority) AuthorizationURL(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://accounts.example.com/auth?state=x", nil
}

func (f *fakeAuthority) ExchangeCode(_ context.Context, code string) (*auth.Credential, error) {
	if code != "good-code" {
		return nil, &auth.AuthenticationError{Reason: "authorization code rejected"}
	}
	return &auth.Credential{AccessToken: "t", Email: "me@example.com"}, nil
}

func (f *fakeAuthority) ExchangeCallback(ctx context.Context, code, state string) (*auth.Credential, error) {
	if state != "x" {
		return nil, &auth.AuthenticationError{Reason: "authorization state does not match"}
	}
	return f.ExchangeCode(ctx, code)
}

func (f *fakeAuthority) ConfigureIdentity(_ context.Context, id, secret string) (*auth.ApplicationIdentity, error) {
	if id == "" || secret == "" {
		return nil, &auth.ConfigurationError{Missing: "client id and secret are required"}
	}
	if f.identity != nil && f.identity.Source == auth.SourceEnvironment {
		return f.identity, nil
	}
	f.identity = &auth.ApplicationIdentity{ClientID: id, ClientSecret: secret, Source: auth.SourceFile}
	return f.identity, nil
}

func (f *fakeAuthority) ConfigureLegacyAccount(_ context.Context, acct model.LegacyAccount, _ string) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	f.savedLegacy = &acct
	return nil
}

func (f *fakeAuthority) LegacyAccount(context.Context) (*model.LegacyAccount, error) {
	return f.legacy, nil
}

type failingMailbox struct {
	mail.Mailbox
	err error
}

func (f failingMailbox) ListUnread(context.Context, int) ([]model.EmailMetadata, error) {
	return nil, f.err
}

func (f failingMailbox) Send(context.Context, string, string, string) error {
	return f.err
}

func newService(t *testing.T, a gateway.Authority, mb mail.Mailbox) *gateway.Service {
	t.Helper()
	profile := style.NewProfile(testutil.NewTestStore(t), log.New(io.Discard))
	return gateway.NewService(a, mb, profile, draft.NewComposer(profile), log.New(io.Discard))
}

func TestAuthStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured", func(t *testing.T) {
		st := newService(t, &fakeAuthority{}, mail.NewSampleClient()).AuthStatus(ctx)
		assert.False(t, st.Authenticated)
		assert.False(t, st.AppConfigured)
		assert.Contains(t, st.Message, "Not Authenticated")
		assert.Contains(t, st.Message, auth.RemedyConfigure)
	})

	t.Run("authenticated", func(t *testing.T) {
		a := &fakeAuthority{
			identity:      &auth.ApplicationIdentity{ClientID: "id", Source: auth.SourceEnvironment},
			authenticated: true,
			address:       "me@example.com",
		}
		st := newService(t, a, mail.NewSampleClient()).AuthStatus(ctx)
		assert.True(t, st.Authenticated)
		assert.True(t, st.AppConfigured)
		assert.Equal(t, auth.SourceEnvironment, st.AppSource)
		assert.Equal(t, "Authenticated: me@example.com", st.Message)
	})

	t.Run("password account", func(t *testing.T) {
		acct := model.NewLegacyAccount("me@example.org", "imap.example.org", "smtp.example.org")
		st := newService(t, &fakeAuthority{legacy: &acct}, mail.NewSampleClient()).AuthStatus(ctx)
		assert.False(t, st.Authenticated)
		assert.Equal(t, "me@example.org", st.Email)
	})
}

func TestAuthorizationURLWithoutIdentity(t *testing.T) {
	ctx := context.Background()
	a := auth.NewStore(testutil.NewTestStore(t), model.DefaultAppConfig().OAuth,
		auth.WithEnv(func(string) string { return "" }),
		auth.WithLogger(log.New(io.Discard)),
	)

	res := newService(t, a, mail.NewSampleClient()).AuthorizationURL(ctx)
	assert.Empty(t, res.URL)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, auth.RemedyConfigure)
}

func TestExchangeCode(t *testing.T) {
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	ok := svc.ExchangeCode(context.Background(), " good-code ")
	assert.Equal(t, "me@example.com", ok.Email)
	assert.False(t, ok.Failed())

	bad := svc.ExchangeCode(context.Background(), "bad")
	assert.Contains(t, bad.Error, auth.RemedyAuthenticate)
}

func TestExchangeCallback(t *testing.T) {
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	ok := svc.ExchangeCallback(context.Background(), "good-code", "x")
	assert.Equal(t, "me@example.com", ok.Email)

	forged := svc.ExchangeCallback(context.Background(), "good-code", "y")
	assert.True(t, forged.Failed())
	assert.Contains(t, forged.Error, "state does not match")
}

func TestConfigureApplicationWithEnvironmentIdentity(t *testing.T) {
	a := &fakeAuthority{identity: &auth.ApplicationIdentity{ClientID: "env-id", Source: auth.SourceEnvironment}}
	svc := newService(t, a, mail.NewSampleClient())

	res := svc.ConfigureApplication(context.Background(), "id", "secret")
	require.False(t, res.Failed())
	assert.Contains(t, res.Message, auth.EnvClientID)
	assert.Contains(t, res.Message, "stay in effect")
	assert.Equal(t, "env-id", a.identity.ClientID)
}

func TestConfigureApplicationAndPasswordAccount(t *testing.T) {
	ctx := context.Background()
	a := &fakeAuthority{}
	svc := newService(t, a, mail.NewSampleClient())

	assert.True(t, svc.ConfigureApplication(ctx, "", "").Failed())
	assert.False(t, svc.ConfigureApplication(ctx, "id", "secret").Failed())
	require.NotNil(t, a.identity)

	res := svc.SetPasswordAccount(ctx, "me@example.org", "pw", "imap.example.org", 0, "smtp.example.org", 465)
	require.False(t, res.Failed(), res.Error)
	require.NotNil(t, a.savedLegacy)
	assert.Equal(t, 993, a.savedLegacy.IMAPPort)
	assert.Equal(t, 465, a.savedLegacy.SMTPPort)

	assert.True(t, svc.SetPasswordAccount(ctx, "", "pw", "imap", 0, "smtp", 0).Failed())
}

func TestListAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	unread := svc.ListUnread(ctx, 0)
	require.False(t, unread.Failed())
	assert.Len(t, unread.Emails, 3)

	found := svc.Search(ctx, "subscription")
	require.Len(t, found.Emails, 1)
	assert.Equal(t, "email_3", found.Emails[0].ID)

	none := svc.Search(ctx, "   ")
	assert.True(t, none.Failed())
	assert.NotNil(t, none.Emails)
}

func TestListUnreadProtocolFailure(t *testing.T) {
	down := &mail.ProtocolError{Op: "list-unread", Kind: mail.KindTransient, Err: io.EOF}
	svc := newService(t, &fakeAuthority{}, failingMailbox{err: down})

	res := svc.ListUnread(context.Background(), 5)
	assert.Empty(t, res.Emails)
	assert.NotNil(t, res.Emails)
	assert.Contains(t, res.Error, "temporarily unavailable")

	// An empty list still renders as an array.
	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"emails":[]`)
}

func TestFetchByID(t *testing.T) {
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	res := svc.FetchByID(context.Background(), "email_2")
	require.NotNil(t, res.Email)
	assert.Equal(t, "Dinner Plans?", res.Email.Subject)

	missing := svc.FetchByID(context.Background(), "email_9")
	assert.Nil(t, missing.Email)
	assert.Equal(t, "email email_9 not found", missing.Error)
}

func TestDraftReplyAndRegenerate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	d := svc.DraftReply(ctx, "email_1")
	require.False(t, d.Failed(), d.Error)
	assert.Equal(t, "email_1", d.EmailID)
	assert.Equal(t, "professional", d.Tone)
	assert.Equal(t, model.DefaultProfileName, d.MimickedStyleID)
	assert.Contains(t, d.Content, `"Project Update Request"`)
	assert.Contains(t, d.Content, "Hi boss,")

	short := svc.RegenerateWithFeedback(ctx, "email_1", "shorter")
	assert.Equal(t, "concise", short.Tone)
	assert.Contains(t, short.Content, "Got it")

	body, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"email_id":"email_1"`)
	assert.NotContains(t, string(body), `"error"`)

	assert.True(t, svc.DraftReply(ctx, "nope").Failed())
}

func TestSendAndSaveDraft(t *testing.T) {
	ctx := context.Background()
	mb := mail.NewSampleClient()
	svc := newService(t, &fakeAuthority{}, mb)

	sent := svc.SendEmail(ctx, "boss@example.com", "Re: Project Update Request", "On it.")
	assert.True(t, sent.Success)
	saved := svc.SaveDraft(ctx, "friend@personal.com", "Re: Dinner Plans?", "Friday!")
	assert.True(t, saved.Success)
	assert.Len(t, mb.Sent, 1)
	assert.Len(t, mb.Drafts, 1)

	failed := svc.SaveDraft(ctx, "", "s", "b")
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Message, mail.ErrEmptyRecipient.Error())
}

func TestSendEmailAuthFailure(t *testing.T) {
	noCred := &auth.AuthenticationError{Reason: "no credential stored"}
	svc := newService(t, &fakeAuthority{}, failingMailbox{err: noCred})

	res := svc.SendEmail(context.Background(), "a@example.com", "s", "b")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, auth.RemedyAuthenticate)
}

func TestRecordEditFeedback(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	res := svc.RecordEditFeedback(ctx, "Hi Jane,\n\nBest,", "Hey Jane,\n\nok\n\nBest,\nSigned, J")
	assert.Equal(t, `Learned greeting "Hey"; learned closing "Signed, J".`, res.Message)

	again := svc.RecordEditFeedback(ctx, "", "Hey Jane,\n\nok\n\nBest,\nSigned, J")
	assert.Equal(t, style.NothingLearned, again.Message)
}

func TestRecordStyleFeedback(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeAuthority{}, mail.NewSampleClient())

	res := svc.RecordStyleFeedback(ctx, "Closing", "Cheers,")
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, `Recorded closing preference "Cheers,"`, res.Message)
	assert.Contains(t, res.Style.PreferredClosings, "Cheers,")

	bad := svc.RecordStyleFeedback(ctx, "signature", "J")
	assert.Contains(t, bad.Error, "unknown feedback kind")

	empty := svc.RecordStyleFeedback(ctx, "tone", "  ")
	assert.Equal(t, "value is required", empty.Error)
}

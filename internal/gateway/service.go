// Package gateway exposes the mail copilot operations as structured
// payloads. No operation returns an error: failures are reported in the
// payload and their causes are logged.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nhle/email-copilot/internal/auth"
	"github.com/nhle/email-copilot/internal/mail"
	"github.com/nhle/email-copilot/internal/model"
)

// Authority is the credential side of the gateway.
type Authority interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	MailboxAddress(ctx context.Context) (string, error)
	Identity(ctx context.Context) (*auth.ApplicationIdentity, error)
	AuthorizationURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code string) (*auth.Credential, error)
	ExchangeCallback(ctx context.Context, code, state string) (*auth.Credential, error)
	ConfigureIdentity(ctx context.Context, clientID, clientSecret string) (*auth.ApplicationIdentity, error)
	ConfigureLegacyAccount(ctx context.Context, acct model.LegacyAccount, password string) error
	LegacyAccount(ctx context.Context) (*model.LegacyAccount, error)
}

// StyleProfile is the writing-style side of the gateway.
type StyleProfile interface {
	Load(ctx context.Context) (model.WritingStyle, error)
	RecordFeedback(ctx context.Context, kind, value string) (model.WritingStyle, error)
	LearnFromEdit(ctx context.Context, draft, final string) (string, error)
}

// Composer drafts replies.
type Composer interface {
	ComposeReply(ctx context.Context, email model.EmailMetadata) (string, error)
	RegenerateWithFeedback(ctx context.Context, email model.EmailMetadata, feedback string) (string, error)
}

// Service implements the gateway operations.
type Service struct {
	auth     Authority
	mailbox  mail.Mailbox
	style    StyleProfile
	composer Composer
	log      *log.Logger
}

// NewService wires the gateway.
func NewService(a Authority, mb mail.Mailbox, sp StyleProfile, c Composer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		auth:     a,
		mailbox:  mb,
		style:    sp,
		composer: c,
		log:      logger.With("component", "gateway"),
	}
}

// describe turns err into a user-facing message and logs causes that the
// user cannot act on.
func (s *Service) describe(op string, err error) string {
	switch {
	case auth.IsConfigurationError(err), auth.IsAuthenticationError(err):
		s.log.Debug("operation needs setup", "op", op, "error", err)
		return err.Error()
	case mail.IsTransient(err):
		s.log.Warn("mail server unavailable", "op", op, "error", err)
		return fmt.Sprintf("mail server temporarily unavailable, try again later: %v", err)
	default:
		s.log.Warn("operation failed", "op", op, "error", err)
		return err.Error()
	}
}

// AuthStatus reports whether a usable credential exists and where the
// application identity comes from.
func (s *Service) AuthStatus(ctx context.Context) AuthStatus {
	var st AuthStatus

	id, err := s.auth.Identity(ctx)
	if err != nil {
		st.Error = s.describe("get-auth-status", err)
	} else if id != nil {
		st.AppConfigured = true
		st.AppSource = id.Source
	}

	ok, err := s.auth.IsAuthenticated(ctx)
	if err != nil {
		// A failed refresh still answers the question.
		s.describe("get-auth-status", err)
	}
	if ok {
		st.Authenticated = true
		st.Email, err = s.auth.MailboxAddress(ctx)
		if err != nil {
			s.describe("get-auth-status", err)
		}
		if st.Email == "" {
			st.Email = "Connected Account"
		}
		st.Message = "Authenticated: " + st.Email
		return st
	}

	if acct, err := s.auth.LegacyAccount(ctx); err == nil && acct != nil {
		st.Email = acct.Email
		st.Message = "Password account configured: " + acct.Email
		return st
	}

	st.Message = "Not Authenticated"
	if !st.AppConfigured && st.Error == "" {
		st.Message += "; " + auth.RemedyConfigure
	}
	return st
}

// AuthorizationURL starts the OAuth2 consent flow.
func (s *Service) AuthorizationURL(ctx context.Context) AuthorizationURL {
	u, err := s.auth.AuthorizationURL(ctx)
	if err != nil {
		return AuthorizationURL{Error: s.describe("get-authorization-url", err)}
	}
	return AuthorizationURL{URL: u}
}

// ExchangeCode completes the OAuth2 flow with the code from the redirect.
func (s *Service) ExchangeCode(ctx context.Context, code string) Exchange {
	cred, err := s.auth.ExchangeCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return Exchange{Error: s.describe("exchange-code", err)}
	}
	return s.exchanged(ctx, cred)
}

// ExchangeCallback completes the OAuth2 flow from the browser redirect,
// which must carry the state issued with the authorization URL.
func (s *Service) ExchangeCallback(ctx context.Context, code, state string) Exchange {
	cred, err := s.auth.ExchangeCallback(ctx, strings.TrimSpace(code), state)
	if err != nil {
		return Exchange{Error: s.describe("oauth-callback", err)}
	}
	return s.exchanged(ctx, cred)
}

func (s *Service) exchanged(ctx context.Context, cred *auth.Credential) Exchange {
	email := cred.Email
	if email == "" {
		email, _ = s.auth.MailboxAddress(ctx)
	}
	return Exchange{Email: email, Message: "Authentication successful: " + email}
}

// ConfigureApplication stores the OAuth2 client identity.
func (s *Service) ConfigureApplication(ctx context.Context, clientID, clientSecret string) Message {
	active, err := s.auth.ConfigureIdentity(ctx, clientID, clientSecret)
	if err != nil {
		return Message{Error: s.describe("configure-application-identity", err)}
	}
	if active != nil && active.Source == auth.SourceEnvironment {
		return Message{Message: fmt.Sprintf(
			"Application identity saved, but %s/%s are set and stay in effect until they are unset.",
			auth.EnvClientID, auth.EnvClientSecret)}
	}
	return Message{Message: "Application identity saved. Next: get-authorization-url."}
}

// SetPasswordAccount stores a password-based account. Zero ports use 993
// and 587.
func (s *Service) SetPasswordAccount(ctx context.Context, email, password, imapHost string, imapPort int, smtpHost string, smtpPort int) Message {
	acct := model.NewLegacyAccount(strings.TrimSpace(email), strings.TrimSpace(imapHost), strings.TrimSpace(smtpHost))
	if imapPort > 0 {
		acct.IMAPPort = imapPort
	}
	if smtpPort > 0 {
		acct.SMTPPort = smtpPort
	}
	if err := s.auth.ConfigureLegacyAccount(ctx, acct, password); err != nil {
		return Message{Error: s.describe("set-password-based-account", err)}
	}
	return Message{Message: "Password account saved for " + acct.Email}
}

// ListUnread returns the most recent unread messages.
func (s *Service) ListUnread(ctx context.Context, limit int) EmailList {
	emails, err := s.mailbox.ListUnread(ctx, limit)
	if err != nil {
		return EmailList{Emails: []model.EmailMetadata{}, Error: s.describe("list-unread", err)}
	}
	return emailList(emails)
}

// Search returns messages matching query.
func (s *Service) Search(ctx context.Context, query string) EmailList {
	query = strings.TrimSpace(query)
	if query == "" {
		return EmailList{Emails: []model.EmailMetadata{}, Error: "query is required"}
	}
	emails, err := s.mailbox.Search(ctx, query)
	if err != nil {
		return EmailList{Emails: []model.EmailMetadata{}, Error: s.describe("search", err)}
	}
	return emailList(emails)
}

func emailList(emails []model.EmailMetadata) EmailList {
	if emails == nil {
		emails = []model.EmailMetadata{}
	}
	return EmailList{Emails: emails}
}

// FetchByID returns one message.
func (s *Service) FetchByID(ctx context.Context, id string) Email {
	email, msg := s.fetch(ctx, "fetch-by-id", id)
	if msg != "" {
		return Email{Error: msg}
	}
	return Email{Email: email}
}

func (s *Service) fetch(ctx context.Context, op, id string) (*model.EmailMetadata, string) {
	email, err := s.mailbox.FetchByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, s.describe(op, err)
	}
	if email == nil {
		return nil, fmt.Sprintf("email %s not found", id)
	}
	return email, ""
}

func tone(w model.WritingStyle) string {
	if w.Formality >= 0.5 {
		return "professional"
	}
	return "casual"
}

// DraftReply composes a reply to the message with the given id.
func (s *Service) DraftReply(ctx context.Context, id string) Draft {
	email, msg := s.fetch(ctx, "draft-reply", id)
	if msg != "" {
		return Draft{Error: msg}
	}
	w, err := s.style.Load(ctx)
	if err != nil {
		return Draft{Error: s.describe("draft-reply", err)}
	}
	content, err := s.composer.ComposeReply(ctx, *email)
	if err != nil {
		return Draft{Error: s.describe("draft-reply", err)}
	}
	return Draft{DraftReply: model.DraftReply{
		EmailID:         email.ID,
		Content:         content,
		Tone:            tone(w),
		MimickedStyleID: w.ProfileName,
	}}
}

// RegenerateWithFeedback composes the reply again with feedback applied.
func (s *Service) RegenerateWithFeedback(ctx context.Context, id, feedback string) Draft {
	email, msg := s.fetch(ctx, "regenerate-with-feedback", id)
	if msg != "" {
		return Draft{Error: msg}
	}
	w, err := s.style.Load(ctx)
	if err != nil {
		return Draft{Error: s.describe("regenerate-with-feedback", err)}
	}
	content, err := s.composer.RegenerateWithFeedback(ctx, *email, feedback)
	if err != nil {
		return Draft{Error: s.describe("regenerate-with-feedback", err)}
	}
	t := tone(w)
	if strings.Contains(strings.ToLower(feedback), "shorter") {
		t = "concise"
	}
	return Draft{DraftReply: model.DraftReply{
		EmailID:         email.ID,
		Content:         content,
		Tone:            t,
		MimickedStyleID: w.ProfileName,
	}}
}

// SaveDraft stores a draft in the drafts mailbox.
func (s *Service) SaveDraft(ctx context.Context, to, subject, body string) Delivery {
	if err := s.mailbox.SaveDraft(ctx, to, subject, body); err != nil {
		return Delivery{Message: "Draft not saved: " + s.describe("save-draft", err)}
	}
	return Delivery{Success: true, Message: "Draft saved to " + to}
}

// SendEmail submits a message.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) Delivery {
	if err := s.mailbox.Send(ctx, to, subject, body); err != nil {
		return Delivery{Message: "Email not sent: " + s.describe("send-email", err)}
	}
	return Delivery{Success: true, Message: "Email sent to " + to}
}

// RecordEditFeedback learns from the difference between a composed draft
// and what was finally sent.
func (s *Service) RecordEditFeedback(ctx context.Context, draft, final string) Message {
	summary, err := s.style.LearnFromEdit(ctx, draft, final)
	if err != nil {
		return Message{Error: s.describe("record-edit-feedback", err)}
	}
	return Message{Message: summary}
}

// RecordStyleFeedback applies one explicit tone, greeting or closing
// preference.
func (s *Service) RecordStyleFeedback(ctx context.Context, kind, value string) Style {
	if strings.TrimSpace(value) == "" {
		return Style{Error: "value is required"}
	}
	w, err := s.style.RecordFeedback(ctx, kind, value)
	if err != nil {
		return Style{Error: s.describe("record-style-feedback", err)}
	}
	return Style{
		Style:   &w,
		Message: fmt.Sprintf("Recorded %s preference %q", strings.ToLower(strings.TrimSpace(kind)), value),
	}
}

package mail

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/email-copilot/internal/model"
)

// AuthMethod selects how a mail session authenticates.
type AuthMethod int

const (
	// MethodXOAuth2 authenticates with a bearer token over SASL XOAUTH2.
	MethodXOAuth2 AuthMethod = iota
	// MethodPassword authenticates with LOGIN on IMAP and PLAIN on SMTP.
	MethodPassword
)

func (m AuthMethod) String() string {
	if m == MethodPassword {
		return "password"
	}
	return "xoauth2"
}

// Login is what a mail session needs to authenticate. Secret is a bearer
// token or a password depending on Method. IMAPAddr and SMTPAddr, when
// set, override the configured endpoints.
type Login struct {
	Username string
	Secret   string
	Method   AuthMethod
	IMAPAddr string
	SMTPAddr string
}

// Authenticator hands out a Login for every session. Errors are returned
// to the caller unchanged.
type Authenticator interface {
	Login(ctx context.Context) (Login, error)
}

// Mailbox is the set of operations offered by a mail backend. Read
// operations never change the read state of messages.
type Mailbox interface {
	// ListUnread returns at most limit of the most recent unread messages in
	// ascending UID order. A non-positive limit uses the configured default.
	ListUnread(ctx context.Context, limit int) ([]model.EmailMetadata, error)

	// Search returns the most recent messages matching query.
	Search(ctx context.Context, query string) ([]model.EmailMetadata, error)

	// FetchByID returns the message with the given id, or nil when there is
	// no such message.
	FetchByID(ctx context.Context, id string) (*model.EmailMetadata, error)

	// Send submits a plain-text message.
	Send(ctx context.Context, to, subject, body string) error

	// SaveDraft stores a plain-text message in the drafts mailbox.
	SaveDraft(ctx context.Context, to, subject, body string) error
}

// ErrInvalidID is returned by FetchByID for identifiers that are not UIDs.
var ErrInvalidID = errors.New("invalid message id")

// ErrEmptyRecipient is returned by Send and SaveDraft without a recipient.
var ErrEmptyRecipient = errors.New("recipient is required")

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

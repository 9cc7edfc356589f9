package gateway

import "github.com/nhle/email-copilot/internal/model"

// AuthStatus is the result of get-auth-status.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	AppConfigured bool   `json:"app_configured"`
	AppSource     string `json:"app_source,omitempty"`
	Message       string `json:"message"`
	Error         string `json:"error,omitempty"`
}

// AuthorizationURL is the result of get-authorization-url.
type AuthorizationURL struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Exchange is the result of exchange-code.
type Exchange struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Message is the result of operations that only report an outcome.
type Message struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EmailList is the result of list-unread and search. Emails is never nil.
type EmailList struct {
	Emails []model.EmailMetadata `json:"emails"`
	Error  string                `json:"error,omitempty"`
}

// Email is the result of fetch-by-id.
type Email struct {
	Email *model.EmailMetadata `json:"email,omitempty"`
	Error string               `json:"error,omitempty"`
}

// Draft is the result of draft-reply and regenerate-with-feedback.
type Draft struct {
	model.DraftReply
	Error string `json:"error,omitempty"`
}

// Style is the result of record-style-feedback.
type Style struct {
	Style   *model.WritingStyle `json:"style,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Delivery is the result of save-draft and send-email.
type Delivery struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Failed reports whether the payload carries an error.
func (p AuthStatus) Failed() bool       { return p.Error != "" }
func (p AuthorizationURL) Failed() bool { return p.Error != "" }
func (p Style) Failed() bool            { return p.Error != "" }
func (p Exchange) Failed() bool         { return p.Error != "" }
func (p Message) Failed() bool          { return p.Error != "" }
func (p EmailList) Failed() bool        { return p.Error != "" }
func (p Email) Failed() bool            { return p.Error != "" }
func (p Draft) Failed() bool            { return p.Error != "" }
func (p Delivery) Failed() bool         { return !p.Success }

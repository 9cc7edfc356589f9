package model

import (
	"fmt"
	"net"
	"strconv"
)

// LegacyAccount describes a password-authenticated mailbox. The password
// itself is kept in the secrets vault.
type LegacyAccount struct {
	Email    string `json:"email"`
	IMAPHost string `json:"imap_host"`
	IMAPPort int    `json:"imap_port"`
	SMTPHost string `json:"smtp_host"`
	SMTPPort int    `json:"smtp_port"`
}

// NewLegacyAccount fills default ports for a password account.
func NewLegacyAccount(email, imapHost, smtpHost string) LegacyAccount {
	return LegacyAccount{
		Email:    email,
		IMAPHost: imapHost,
		IMAPPort: 993,
		SMTPHost: smtpHost,
		SMTPPort: 587,
	}
}

// Validate reports the first missing field.
func (a LegacyAccount) Validate() error {
	switch {
	case a.Email == "":
		return fmt.Errorf("legacy account: email is required")
	case a.IMAPHost == "":
		return fmt.Errorf("legacy account: imap host is required")
	case a.SMTPHost == "":
		return fmt.Errorf("legacy account: smtp host is required")
	}
	return nil
}

// IMAPAddr returns host:port for the IMAP server.
func (a LegacyAccount) IMAPAddr() string {
	port := a.IMAPPort
	if port == 0 {
		port = 993
	}
	return net.JoinHostPort(a.IMAPHost, strconv.Itoa(port))
}

// SMTPAddr returns host:port for the SMTP server.
func (a LegacyAccount) SMTPAddr() string {
	port := a.SMTPPort
	if port == 0 {
		port = 587
	}
	return net.JoinHostPort(a.SMTPHost, strconv.Itoa(port))
}

package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Send implements Mailbox over SMTP submission with STARTTLS.
func (c *IMAPClient) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}
	l, err := c.auth.Login(ctx)
	if err != nil {
		return err
	}

	raw, err := BuildMessage(l.Username, to, subject, body, time.Time{})
	if err != nil {
		return err
	}
	rcpt := envelopeRecipient(to)

	return c.smtpGuard.do(ctx, "send", func(ctx context.Context) error {
		return c.submit(ctx, l, rcpt, raw)
	})
}

func (c *IMAPClient) submit(ctx context.Context, l Login, rcpt string, raw []byte) error {
	addr := c.smtpAddr(l)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing smtp address %q: %w", addr, err)
	}

	d := &net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(c.tlsConfig(host)); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	if err := client.Auth(smtpAuth{client: saslClient(l)}); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, l.Username, rcpt, raw)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from, to string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}

// envelopeRecipient extracts the bare address from a To value such as
// "Jane <jane@example.com>".
func envelopeRecipient(to string) string {
	to = strings.TrimSpace(to)
	if i := strings.LastIndex(to, "<"); i >= 0 {
		if j := strings.Index(to[i:], ">"); j > 0 {
			return strings.TrimSpace(to[i+1 : i+j])
		}
	}
	return to
}

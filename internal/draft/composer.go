// Package draft composes plain-text replies in the owner's writing style.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/email-copilot/internal/model"
)

// StyleSource provides the writing style to compose with.
type StyleSource interface {
	Load(ctx context.Context) (model.WritingStyle, error)
}

// Composer builds reply drafts from templates. Output depends only on the
// message and the current style.
type Composer struct {
	style StyleSource
}

// NewComposer returns a Composer reading its style from src.
func NewComposer(src StyleSource) *Composer {
	return &Composer{style: src}
}

const replyTemplate = `%s %s,

Thanks for your email regarding "%s".

I'm looking into this and will get back to you shortly.

%s
`

const shortTemplate = `%s %s,

Got it, I'll follow up on "%s" soon.

%s
`

// ComposeReply drafts a reply to email.
func (c *Composer) ComposeReply(ctx context.Context, email model.EmailMetadata) (string, error) {
	w, err := c.style.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("composing reply: %w", err)
	}
	return fmt.Sprintf(replyTemplate, w.Greeting(), SalutationName(email.Sender), email.Subject, w.Closing()), nil
}

// RegenerateWithFeedback drafts again taking feedback into account. Only
// a request for a shorter reply changes the template; any other feedback is
// acknowledged above the regular draft.
func (c *Composer) RegenerateWithFeedback(ctx context.Context, email model.EmailMetadata, feedback string) (string, error) {
	if strings.Contains(strings.ToLower(feedback), "shorter") {
		w, err := c.style.Load(ctx)
		if err != nil {
			return "", fmt.Errorf("regenerating reply: %w", err)
		}
		return fmt.Sprintf(shortTemplate, w.Greeting(), SalutationName(email.Sender), email.Subject, w.Closing()), nil
	}

	body, err := c.ComposeReply(ctx, email)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[Draft regenerated with feedback: %s]\n\n%s", feedback, body), nil
}

// SalutationName extracts the name to address a sender by: the display
// name of "Name <addr>", else the local part of the address.
func SalutationName(sender string) string {
	sender = strings.TrimSpace(sender)
	if name, addr, ok := strings.Cut(sender, "<"); ok {
		if name = strings.Trim(strings.TrimSpace(name), `"`); name != "" {
			return name
		}
		sender, _, _ = strings.Cut(addr, ">")
	}
	if local, _, ok := strings.Cut(sender, "@"); ok && local != "" {
		return local
	}
	return sender
}

// ReplySubject prefixes subject with "Re: " unless it already has one.
func ReplySubject(subject string) string {
	s := strings.TrimSpace(subject)
	if len(s) >= 3 && strings.EqualFold(s[:3], "re:") {
		return s
	}
	return "Re: " + s
}

package mail

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/email-copilot/internal/model"
)

// ParseMessage turns a raw RFC 5322 message into EmailMetadata. It never
// fails: undecodable parts degrade to best-effort text and a message that
// cannot be parsed at all is summarised from its raw bytes.
func ParseMessage(raw []byte, id, recipient string, now time.Time) model.EmailMetadata {
	meta := model.EmailMetadata{
		ID:        id,
		ThreadID:  model.UnknownThreadID,
		Recipient: recipient,
		Timestamp: now,
		IsUnread:  true,
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		meta.Summary = model.Summarize(strings.ToValidUTF8(string(raw), ""))
		return meta
	}
	defer mr.Close()

	// Subject returns the raw value alongside a decoding error.
	subject, _ := mr.Header.Subject()
	meta.Subject = strings.ToValidUTF8(subject, "")
	meta.Sender = mr.Header.Get("From")
	if mid := strings.TrimSpace(mr.Header.Get("Message-Id")); mid != "" {
		meta.ThreadID = mid
	}

	mediaType, _, _ := mr.Header.ContentType()
	multipart := strings.HasPrefix(mediaType, "multipart/")

	body := readBody(mr, multipart)
	meta.Summary = model.Summarize(strings.ToValidUTF8(body, ""))
	return meta
}

// readBody returns the first text/plain part of a multipart message, or
// the whole body of a single-part one.
func readBody(mr *mail.Reader, multipart bool) string {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return ""
		}
		if err != nil && (part == nil || !message.IsUnknownCharset(err)) {
			return ""
		}

		if multipart && !isPlainText(part.Header) {
			continue
		}

		// A truncated or badly encoded body keeps whatever was decoded.
		b, _ := io.ReadAll(part.Body)
		return string(b)
	}
}

func isPlainText(h mail.PartHeader) bool {
	var mediaType string
	switch h := h.(type) {
	case *mail.InlineHeader:
		mediaType, _, _ = h.ContentType()
	case *mail.AttachmentHeader:
		mediaType, _, _ = h.ContentType()
	}
	return mediaType == "text/plain"
}

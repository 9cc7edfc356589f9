package model

import (
	"time"
	"unicode/utf8"
)

// SummaryLength is the number of runes of body text kept in a summary.
const SummaryLength = 200

// UnknownThreadID is used when a message carries no Message-ID header.
const UnknownThreadID = "unknown"

// EmailMetadata is the parsed view of a single mailbox message.
type EmailMetadata struct {
	// ID is the server-assigned UID of the message, as a decimal string.
	ID string `json:"id"`

	// ThreadID is the Message-ID header, or UnknownThreadID.
	ThreadID string `json:"thread_id"`

	Subject string `json:"subject"`

	// Sender is the raw From header value.
	Sender string `json:"sender"`

	// Recipient is the resolved address of the mailbox owner.
	Recipient string `json:"recipient"`

	// Timestamp is the local time the message was retrieved, not the
	// message's Date header.
	Timestamp time.Time `json:"timestamp"`

	Summary  string `json:"summary"`
	IsUnread bool   `json:"is_unread"`
}

// Summarize truncates body to SummaryLength runes and appends "..." when
// anything was cut off.
func Summarize(body string) string {
	if utf8.RuneCountInString(body) <= SummaryLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:SummaryLength]) + "..."
}

package mail

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nhle/email-copilot/internal/model"
)

// OutgoingMessage is a message recorded by FixtureClient.
type OutgoingMessage struct {
	To      string
	Subject string
	Body    string
	Date    time.Time
}

// FixtureClient is a deterministic in-memory Mailbox. It never changes the
// unread state of its messages.
type FixtureClient struct {
	mu       sync.Mutex
	messages map[string]model.EmailMetadata
	now      func() time.Time

	Sent   []OutgoingMessage
	Drafts []OutgoingMessage
}

var _ Mailbox = (*FixtureClient)(nil)

// NewFixtureClient returns a FixtureClient holding messages.
func NewFixtureClient(messages ...model.EmailMetadata) *FixtureClient {
	f := &FixtureClient{
		messages: make(map[string]model.EmailMetadata, len(messages)),
		now:      time.Now,
	}
	for _, m := range messages {
		f.messages[m.ID] = m
	}
	return f
}

// SampleMessages returns the three seed messages of the demo mailbox,
// timestamped relative to now.
func SampleMessages(now time.Time) []model.EmailMetadata {
	return []model.EmailMetadata{
		{
			ID:        "email_1",
			ThreadID:  "thread_1",
			Subject:   "Project Update Request",
			Sender:    "boss@example.com",
			Recipient: "me@example.com",
			Timestamp: now.Add(-2 * time.Hour),
			Summary:   "Urgent: Need the status of the Q1 project by EOD.",
			IsUnread:  true,
		},
		{
			ID:        "email_2",
			ThreadID:  "thread_2",
			Subject:   "Dinner Plans?",
			Sender:    "friend@personal.com",
			Recipient: "me@example.com",
			Timestamp: now.Add(-24 * time.Hour),
			Summary:   "Checking in to see if you are free for dinner on Friday.",
			IsUnread:  true,
		},
		{
			ID:        "email_3",
			ThreadID:  "thread_3",
			Subject:   "Subscription Renewal",
			Sender:    "billing@service.com",
			Recipient: "me@example.com",
			Timestamp: now.Add(-45 * time.Minute),
			Summary:   "Your subscription will automatically renew in 2 days.",
			IsUnread:  true,
		},
	}
}

// NewSampleClient returns a FixtureClient seeded with SampleMessages.
func NewSampleClient() *FixtureClient {
	return NewFixtureClient(SampleMessages(time.Now())...)
}

func (f *FixtureClient) sorted() []model.EmailMetadata {
	out := make([]model.EmailMetadata, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func tail(msgs []model.EmailMetadata, n int) []model.EmailMetadata {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

// ListUnread implements Mailbox.
func (f *FixtureClient) ListUnread(_ context.Context, limit int) ([]model.EmailMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.EmailMetadata
	for _, m := range f.sorted() {
		if m.IsUnread {
			out = append(out, m)
		}
	}
	return tail(out, limit), nil
}

// Search implements Mailbox with a case-insensitive match on subject,
// sender and summary.
func (f *FixtureClient) Search(_ context.Context, query string) ([]model.EmailMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := strings.ToLower(query)
	var out []model.EmailMetadata
	for _, m := range f.sorted() {
		if strings.Contains(strings.ToLower(m.Subject), q) ||
			strings.Contains(strings.ToLower(m.Sender), q) ||
			strings.Contains(strings.ToLower(m.Summary), q) {
			out = append(out, m)
		}
	}
	return tail(out, 10), nil
}

// FetchByID implements Mailbox.
func (f *FixtureClient) FetchByID(_ context.Context, id string) (*model.EmailMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// Send implements Mailbox by recording the message.
func (f *FixtureClient) Send(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, OutgoingMessage{To: to, Subject: subject, Body: body})
	return nil
}

// SaveDraft implements Mailbox by recording the draft.
func (f *FixtureClient) SaveDraft(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Drafts = append(f.Drafts, OutgoingMessage{To: to, Subject: subject, Body: body, Date: f.now()})
	return nil
}

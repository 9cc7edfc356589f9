package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleClientListUnread(t *testing.T) {
	ctx := context.Background()
	f := NewSampleClient()

	msgs, err := f.ListUnread(ctx, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "email_1", msgs[0].ID)
	assert.Equal(t, "Project Update Request", msgs[0].Subject)
	assert.Equal(t, "boss@example.com", msgs[0].Sender)

	limited, err := f.ListUnread(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "email_2", limited[0].ID)
}

func TestFixtureReadsDoNotChangeUnreadState(t *testing.T) {
	ctx := context.Background()
	f := NewSampleClient()

	_, err := f.FetchByID(ctx, "email_2")
	require.NoError(t, err)
	_, err = f.Search(ctx, "dinner")
	require.NoError(t, err)

	msgs, err := f.ListUnread(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, m.IsUnread, m.ID)
	}
}

func TestFixtureSearchIsCaseInsensitive(t *testing.T) {
	f := NewSampleClient()

	msgs, err := f.Search(context.Background(), "DINNER")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "email_2", msgs[0].ID)

	msgs, err = f.Search(context.Background(), "nothing matches this")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFixtureFetchByIDMissing(t *testing.T) {
	msg, err := NewSampleClient().FetchByID(context.Background(), "email_404")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestFixtureRecordsOutgoing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	f := NewFixtureClient(SampleMessages(now)...)
	f.now = func() time.Time { return now }

	require.NoError(t, f.Send(ctx, "boss@example.com", "Re: Project Update Request", "On it."))
	require.NoError(t, f.SaveDraft(ctx, "friend@personal.com", "Re: Dinner Plans?", "Friday works."))
	assert.ErrorIs(t, f.Send(ctx, " ", "s", "b"), ErrEmptyRecipient)
	assert.ErrorIs(t, f.SaveDraft(ctx, "", "s", "b"), ErrEmptyRecipient)

	require.Len(t, f.Sent, 1)
	assert.Equal(t, "boss@example.com", f.Sent[0].To)
	require.Len(t, f.Drafts, 1)
	assert.Equal(t, now, f.Drafts[0].Date)
	assert.Equal(t, "Friday works.", f.Drafts[0].Body)
}

package mail

import (
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastUIDs(t *testing.T) {
	uids := []imap.UID{9, 2, 14, 5, 11}

	assert.Equal(t, []imap.UID{9, 11, 14}, LastUIDs(uids, 3))
	assert.Equal(t, []imap.UID{2, 5, 9, 11, 14}, LastUIDs(uids, 10))
	assert.Equal(t, []imap.UID{2, 5, 9, 11, 14}, LastUIDs(uids, 0))
	assert.Empty(t, LastUIDs(nil, 3))
	// The input slice is left untouched.
	assert.Equal(t, []imap.UID{9, 2, 14, 5, 11}, uids)
}

func TestParseUID(t *testing.T) {
	uid, err := ParseUID(" 4821 ")
	require.NoError(t, err)
	assert.Equal(t, imap.UID(4821), uid)

	for _, id := range []string{"", "0", "email_1", "-3", "99999999999"} {
		_, err := ParseUID(id)
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
}

func TestUnseenCriteria(t *testing.T) {
	c := UnseenCriteria()
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, c.NotFlag)
	assert.Empty(t, c.Flag)
}

func TestKeywordCriteria(t *testing.T) {
	c := KeywordCriteria("invoice")
	require.Len(t, c.Or, 1)

	subject, text := c.Or[0][0], c.Or[0][1]
	assert.Equal(t, []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: "invoice"}}, subject.Header)
	assert.Equal(t, []string{"invoice"}, text.Text)
}

func TestGmailRawQuery(t *testing.T) {
	assert.Equal(t, `X-GM-RAW "from:boss has:attachment"`, GmailRawQuery("from:boss has:attachment"))
	assert.Equal(t, `X-GM-RAW "subject:\"Q1 plan\""`, GmailRawQuery(`subject:"Q1 plan"`))
}

func TestEnvelopeRecipient(t *testing.T) {
	assert.Equal(t, "jane@example.com", envelopeRecipient("Jane Doe <jane@example.com>"))
	assert.Equal(t, "jane@example.com", envelopeRecipient(" jane@example.com "))
}

package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"syscall"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"canceled", context.Canceled, KindPermanent},
		{"eof", fmt.Errorf("reading greeting: %w", io.EOF), KindTransient},
		{"conn reset", &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}, KindTransient},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("no route to host")}, KindTransient},
		{"temporary dns", &net.DNSError{Err: "server misbehaving", IsTemporary: true}, KindTransient},
		{"breaker open", gobreaker.ErrOpenState, KindTransient},
		{"imap unavailable", &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeUnavailable, Text: "try later"}, KindTransient},
		{"imap auth failed", &imap.Error{Type: imap.StatusResponseTypeNo, Code: imap.ResponseCodeAuthenticationFailed, Text: "invalid credentials"}, KindPermanent},
		{"smtp 421", &textproto.Error{Code: 421, Msg: "service not available"}, KindTransient},
		{"smtp 535", &textproto.Error{Code: 535, Msg: "bad credentials"}, KindPermanent},
		{"unknown", errors.New("mailbox does not exist"), KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWrapProtocol(t *testing.T) {
	assert.NoError(t, wrapProtocol("fetch", nil))

	err := wrapProtocol("fetch", io.EOF)
	assert.True(t, IsProtocolError(err))
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "mail fetch failed (transient): EOF", err.Error())

	// Already wrapped errors keep their original operation.
	again := wrapProtocol("search", fmt.Errorf("outer: %w", err))
	var pe *ProtocolError
	assert.ErrorAs(t, again, &pe)
	assert.Equal(t, "fetch", pe.Op)

	assert.False(t, IsProtocolError(errors.New("plain")))
	assert.False(t, IsTransient(wrapProtocol("send", errors.New("rejected"))))
}

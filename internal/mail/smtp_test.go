package mail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// submissionServer is a minimal SMTP submission endpoint that upgrades
// with STARTTLS and records what it was sent.
type submissionServer struct {
	addr      string
	tlsConfig *tls.Config
	pool      *x509.CertPool
	refuseTLS bool

	mu       sync.Mutex
	verbs    []string
	authMech string
	authData string
	from     string
	rcpt     []string
	data     string
}

func newSubmissionServer(t *testing.T, refuseTLS bool) (*submissionServer, *IMAPClient) {
	t.Helper()
	cert, pool := localCert(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	s := &submissionServer{
		addr:      ln.Addr().String(),
		tlsConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		pool:      pool,
		refuseTLS: refuseTLS,
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()

	login := Login{Username: testUser, Secret: testPassword, Method: MethodPassword, SMTPAddr: s.addr}
	return s, newTestClient(t, login, pool, WithRawSearcher(nil))
}

func (s *submissionServer) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	secure := false
	_ = tp.PrintfLine("220 localhost ESMTP ready")

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		s.mu.Lock()
		s.verbs = append(s.verbs, verb)
		s.mu.Unlock()

		switch verb {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250-localhost")
			if !secure {
				_ = tp.PrintfLine("250-STARTTLS")
			}
			_ = tp.PrintfLine("250 AUTH PLAIN XOAUTH2")
		case "STARTTLS":
			if s.refuseTLS {
				_ = tp.PrintfLine("502 5.5.1 STARTTLS not available")
				continue
			}
			_ = tp.PrintfLine("220 2.0.0 ready to start TLS")
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tp = textproto.NewConn(tlsConn)
			secure = true
		case "AUTH":
			mech, ir, _ := strings.Cut(arg, " ")
			decoded, _ := base64.StdEncoding.DecodeString(ir)
			s.mu.Lock()
			s.authMech, s.authData = mech, string(decoded)
			s.mu.Unlock()
			if !secure {
				_ = tp.PrintfLine("530 5.7.0 must issue STARTTLS first")
				continue
			}
			_ = tp.PrintfLine("235 2.7.0 accepted")
		case "MAIL":
			s.mu.Lock()
			s.from = arg
			s.mu.Unlock()
			_ = tp.PrintfLine("250 2.1.0 ok")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = append(s.rcpt, arg)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 2.1.5 ok")
		case "DATA":
			_ = tp.PrintfLine("354 end data with <CR><LF>.<CR><LF>")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(body)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 2.0.0 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 2.0.0 bye")
			return
		default:
			_ = tp.PrintfLine("502 5.5.2 unrecognized command")
		}
	}
}

func (s *submissionServer) sawVerb(verb string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.verbs {
		if v == verb {
			return true
		}
	}
	return false
}

func TestSendOverStartTLS(t *testing.T) {
	s, c := newSubmissionServer(t, false)

	err := c.Send(context.Background(), "Jane <jane@example.com>", "Lunch on Friday", "Noon works for me.")
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "PLAIN", s.authMech)
	assert.Equal(t, "\x00"+testUser+"\x00"+testPassword, s.authData)
	assert.Equal(t, "FROM:<"+testUser+">", s.from)
	assert.Equal(t, []string{"TO:<jane@example.com>"}, s.rcpt)
	assert.Contains(t, s.data, "Subject: Lunch on Friday")
	assert.Contains(t, s.data, "jane@example.com")
	assert.Contains(t, s.data, "Noon works for me.")
	assert.Contains(t, s.verbs, "QUIT")
}

func TestSendWithBearerToken(t *testing.T) {
	s, _ := newSubmissionServer(t, false)

	login := Login{Username: testUser, Secret: "ya29.token", Method: MethodXOAuth2, SMTPAddr: s.addr}
	c := newTestClient(t, login, s.pool, WithRawSearcher(nil))
	require.NoError(t, c.Send(context.Background(), "jane@example.com", "Hi", "Hello."))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, XOAuth2, s.authMech)
	assert.Equal(t, "user="+testUser+"\x01auth=Bearer ya29.token\x01\x01", s.authData)
}

func TestSendFailsWhenStartTLSRefused(t *testing.T) {
	s, c := newSubmissionServer(t, true)

	err := c.Send(context.Background(), "jane@example.com", "Hi", "Hello.")
	require.Error(t, err)
	assert.True(t, IsProtocolError(err))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "STARTTLS")

	assert.True(t, s.sawVerb("STARTTLS"))
	assert.False(t, s.sawVerb("AUTH"))
	assert.False(t, s.sawVerb("MAIL"))
}

func TestSendRequiresRecipient(t *testing.T) {
	s, c := newSubmissionServer(t, false)

	assert.ErrorIs(t, c.Send(context.Background(), "  ", "Hi", "Hello."), ErrEmptyRecipient)
	assert.False(t, s.sawVerb("EHLO"))
}

package mail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"mime"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/nhle/email-copilot/internal/model"
)

// IMAPClient is the network Mailbox: IMAP for reading and drafts, SMTP for
// submission. Every operation opens and closes its own session.
type IMAPClient struct {
	cfg  model.MailConfig
	auth Authenticator
	raw  RawSearcher
	log  *log.Logger
	now  func() time.Time

	imapGuard *guard
	smtpGuard *guard

	rootCAs *x509.CertPool
}

var _ Mailbox = (*IMAPClient)(nil)

// IMAPOption configures an IMAPClient.
type IMAPOption func(*IMAPClient)

// WithRawSearcher replaces the Gmail raw searcher. nil disables the
// advanced search.
func WithRawSearcher(r RawSearcher) IMAPOption {
	return func(c *IMAPClient) { c.raw = r }
}

// WithClock replaces time.Now for retrieval timestamps and draft dates.
func WithClock(now func() time.Time) IMAPOption {
	return func(c *IMAPClient) { c.now = now }
}

// WithRootCAs trusts pool instead of the system roots, for servers with a
// private CA.
func WithRootCAs(pool *x509.CertPool) IMAPOption {
	return func(c *IMAPClient) { c.rootCAs = pool }
}

// NewIMAPClient creates an IMAPClient for cfg.
func NewIMAPClient(cfg model.MailConfig, auth Authenticator, logger *log.Logger, opts ...IMAPOption) *IMAPClient {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "mail")
	cfg.Timeout = defaultTimeout(cfg.Timeout)

	c := &IMAPClient{
		cfg:       cfg,
		auth:      auth,
		raw:       NewRawSearcher(cfg.Timeout),
		log:       logger,
		now:       time.Now,
		imapGuard: newGuard("imap", cfg.Retries, logger),
		smtpGuard: newGuard("smtp", cfg.Retries, logger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *IMAPClient) tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, RootCAs: c.rootCAs}
}

func (c *IMAPClient) dialTLS(ctx context.Context, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.cfg.Timeout},
		Config:    c.tlsConfig(host),
	}
	return d.DialContext(ctx, "tcp", addr)
}

func (c *IMAPClient) imapAddr(l Login) string {
	if l.IMAPAddr != "" {
		return l.IMAPAddr
	}
	return c.cfg.IMAPAddr
}

func (c *IMAPClient) smtpAddr(l Login) string {
	if l.SMTPAddr != "" {
		return l.SMTPAddr
	}
	return c.cfg.SMTPAddr
}

// session is one authenticated IMAP connection.
type session struct {
	client *imapclient.Client
	stop   func() bool
}

func (s *session) close() {
	_ = s.client.Logout().Wait()
	_ = s.client.Close()
	s.stop()
}

// open dials, authenticates, and bounds the whole session by the configured
// timeout and by ctx.
func (c *IMAPClient) open(ctx context.Context, l Login) (*session, error) {
	addr := c.imapAddr(l)
	conn, err := c.dialTLS(ctx, addr)
	if err != nil {
		return nil, wrapProtocol("connect", fmt.Errorf("dialing %s: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Now().Add(c.cfg.Timeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	client := imapclient.New(conn, &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	})

	if l.Method == MethodPassword {
		err = client.Login(l.Username, l.Secret).Wait()
	} else {
		err = client.Authenticate(NewXOAuth2Client(l.Username, l.Secret))
	}
	if err != nil {
		_ = client.Close()
		stop()
		return nil, wrapProtocol("authenticate", fmt.Errorf("authenticating %s: %w", l.Username, err))
	}

	return &session{client: client, stop: stop}, nil
}

// withMailbox runs fn in a fresh session with the primary mailbox opened
// read-only, so no fetch can clear the \Seen flag.
func (c *IMAPClient) withMailbox(ctx context.Context, op string, l Login, fn func(*imapclient.Client) error) error {
	return c.imapGuard.do(ctx, op, func(ctx context.Context) error {
		s, err := c.open(ctx, l)
		if err != nil {
			return err
		}
		defer s.close()

		if _, err := s.client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return fmt.Errorf("examining %s: %w", c.cfg.Mailbox, err)
		}
		return fn(s.client)
	})
}

// ListUnread implements Mailbox.
func (c *IMAPClient) ListUnread(ctx context.Context, limit int) ([]model.EmailMetadata, error) {
	if limit <= 0 {
		limit = c.cfg.UnreadLimit
	}
	l, err := c.auth.Login(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.EmailMetadata
	err = c.withMailbox(ctx, "list-unread", l, func(client *imapclient.Client) error {
		data, err := client.UIDSearch(UnseenCriteria(), nil).Wait()
		if err != nil {
			return fmt.Errorf("searching unseen: %w", err)
		}
		out, err = c.fetch(client, LastUIDs(data.AllUIDs(), limit), l.Username)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search implements Mailbox. The Gmail advanced search runs first; when it
// fails or matches nothing a subject-or-text keyword search is used.
func (c *IMAPClient) Search(ctx context.Context, query string) ([]model.EmailMetadata, error) {
	l, err := c.auth.Login(ctx)
	if err != nil {
		return nil, err
	}

	var uids []imap.UID
	if c.raw != nil {
		uids, err = c.raw.SearchRaw(ctx, l, c.imapAddr(l), c.cfg.Mailbox, GmailRawQuery(query))
		if err != nil {
			c.log.Debug("advanced search failed, falling back", "error", err)
			uids = nil
		}
	}

	var out []model.EmailMetadata
	err = c.withMailbox(ctx, "search", l, func(client *imapclient.Client) error {
		found := uids
		if len(found) == 0 {
			data, err := client.UIDSearch(KeywordCriteria(query), nil).Wait()
			if err != nil {
				return fmt.Errorf("keyword search: %w", err)
			}
			found = data.AllUIDs()
		}
		var err error
		out, err = c.fetch(client, LastUIDs(found, c.cfg.SearchLimit), l.Username)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchByID implements Mailbox.
func (c *IMAPClient) FetchByID(ctx context.Context, id string) (*model.EmailMetadata, error) {
	uid, err := ParseUID(id)
	if err != nil {
		return nil, err
	}
	l, err := c.auth.Login(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.EmailMetadata
	err = c.withMailbox(ctx, "fetch", l, func(client *imapclient.Client) error {
		var err error
		out, err = c.fetch(client, []imap.UID{uid}, l.Username)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// SaveDraft implements Mailbox.
func (c *IMAPClient) SaveDraft(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrEmptyRecipient
	}
	l, err := c.auth.Login(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	raw, err := BuildMessage(l.Username, to, subject, body, now)
	if err != nil {
		return err
	}

	return c.imapGuard.do(ctx, "save-draft", func(ctx context.Context) error {
		s, err := c.open(ctx, l)
		if err != nil {
			return err
		}
		defer s.close()

		cmd := s.client.Append(c.cfg.DraftsMailbox, int64(len(raw)), &imap.AppendOptions{
			Flags: []imap.Flag{imap.FlagDraft},
			Time:  now,
		})
		if _, err := cmd.Write(raw); err != nil {
			_ = cmd.Close()
			return fmt.Errorf("writing draft: %w", err)
		}
		if err := cmd.Close(); err != nil {
			return fmt.Errorf("closing draft: %w", err)
		}
		if _, err := cmd.Wait(); err != nil {
			return fmt.Errorf("appending to %s: %w", c.cfg.DraftsMailbox, err)
		}
		return nil
	})
}

// fetch retrieves full messages with BODY.PEEK[] and parses them, keeping
// the order of uids.
func (c *IMAPClient) fetch(client *imapclient.Client, uids []imap.UID, recipient string) ([]model.EmailMetadata, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	cmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	bufs, err := cmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	byUID := make(map[imap.UID][]byte, len(bufs))
	for _, buf := range bufs {
		byUID[buf.UID] = buf.FindBodySection(section)
	}

	now := c.now()
	out := make([]model.EmailMetadata, 0, len(bufs))
	for _, uid := range uids {
		raw, ok := byUID[uid]
		if !ok {
			continue
		}
		out = append(out, ParseMessage(raw, strconv.FormatUint(uint64(uid), 10), recipient, now))
	}
	return out, nil
}

// UnseenCriteria matches messages without the \Seen flag.
func UnseenCriteria() *imap.SearchCriteria {
	return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
}

// KeywordCriteria matches query in the subject or anywhere in the message.
func KeywordCriteria(query string) *imap.SearchCriteria {
	return &imap.SearchCriteria{
		Or: [][2]imap.SearchCriteria{{
			{Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: query}}},
			{Text: []string{query}},
		}},
	}
}

// LastUIDs returns the n highest UIDs in ascending order.
func LastUIDs(uids []imap.UID, n int) []imap.UID {
	sorted := append([]imap.UID(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	if n > 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// ParseUID converts a message id to a UID.
func ParseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return imap.UID(n), nil
}

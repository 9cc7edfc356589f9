package mail

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	goimap "github.com/BrianLeishman/go-imap"
	"github.com/emersion/go-imap/v2"
)

// RawSearcher runs a provider-specific search expression against a mailbox
// opened read-only and returns the matching UIDs in ascending order.
type RawSearcher interface {
	SearchRaw(ctx context.Context, login Login, addr, mailbox, expr string) ([]imap.UID, error)
}

// GmailRawQuery builds an X-GM-RAW search key, the same syntax as the Gmail
// web search box.
func GmailRawQuery(query string) string {
	return `X-GM-RAW "` + goimap.AddSlashes.Replace(query) + `"`
}

var configureRawOnce sync.Once

// rawIMAP issues raw UID SEARCH commands, which the structured client
// cannot express.
type rawIMAP struct{}

// NewRawSearcher returns a RawSearcher backed by a raw-command IMAP
// connection. Its timeouts are process-wide; the first call wins.
func NewRawSearcher(timeout time.Duration) RawSearcher {
	timeout = defaultTimeout(timeout)
	configureRawOnce.Do(func() {
		goimap.DialTimeout = timeout
		goimap.CommandTimeout = timeout
		// Failures fall back to a standard search instead of being retried.
		goimap.RetryCount = 1
	})
	return &rawIMAP{}
}

type rawResult struct {
	uids []int
	err  error
}

func (r *rawIMAP) SearchRaw(ctx context.Context, login Login, addr, mailbox, expr string) ([]imap.UID, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing imap address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing imap port %q: %w", portStr, err)
	}

	done := make(chan rawResult, 1)
	go func() {
		uids, err := r.search(login, host, port, mailbox, expr)
		done <- rawResult{uids: uids, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		out := make([]imap.UID, 0, len(res.uids))
		for _, u := range res.uids {
			out = append(out, imap.UID(u))
		}
		return out, nil
	}
}

func (r *rawIMAP) search(login Login, host string, port int, mailbox, expr string) ([]int, error) {
	var (
		d   *goimap.Dialer
		err error
	)
	if login.Method == MethodPassword {
		d, err = goimap.New(login.Username, login.Secret, host, port)
	} else {
		d, err = goimap.NewWithOAuth2(login.Username, login.Secret, host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting for raw search: %w", err)
	}
	defer d.Close()

	if err := d.ExamineFolder(mailbox); err != nil {
		return nil, fmt.Errorf("examining %s: %w", mailbox, err)
	}

	uids, err := d.GetUIDs(expr)
	if err != nil {
		return nil, fmt.Errorf("raw search: %w", err)
	}
	return uids, nil
}

package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/email-copilot/internal/gateway"
)

// State is the state of the background unread poll.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status describes the last poll.
type Status struct {
	State    State
	LastSync time.Time
	Error    string
}

// ResultMsg is a tea.Msg sent when a poll completes. NewCount is the number
// of unread messages not seen by any earlier poll; the first poll reports
// zero.
type ResultMsg struct {
	Result   gateway.EmailList
	NewCount int
}

// Source lists unread mail.
type Source interface {
	ListUnread(ctx context.Context, limit int) gateway.EmailList
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 2 * time.Minute

// fetchTimeout is the maximum time allowed for a single poll.
const fetchTimeout = time.Minute

// Poller lists unread mail in the background and reports new arrivals.
type Poller struct {
	src       Source
	interval  time.Duration
	seen      map[string]bool
	primed    bool
	status    Status
	resultCh  chan ResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	cancel    context.CancelFunc
	mu        gosync.Mutex
	running   bool
}

// New creates a poller over src.
func New(src Source, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		src:       src,
		interval:  interval,
		seen:      make(map[string]bool),
		resultCh:  make(chan ResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start begins polling and returns a command that waits for the first
// result. Calling Start while running is a no-op; a stopped poller can be
// started again.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(ctx, stop)
	return p.WaitForNextResult()
}

// Stop halts polling and cancels a fetch in flight.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.cancel()
	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate poll. A refresh already pending absorbs
// this one.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Status returns the state of the last poll.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.triggerCh:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(parent context.Context) {
	p.setStatus(StateRunning, "")

	ctx, cancel := context.WithTimeout(parent, fetchTimeout)
	defer cancel()

	res := p.src.ListUnread(ctx, 0)
	if parent.Err() != nil {
		// Stopped mid-fetch; the result belongs to nobody.
		p.mu.Lock()
		p.status.State = StateIdle
		p.mu.Unlock()
		return
	}
	if res.Failed() {
		p.setStatus(StateError, res.Error)
		p.sendResult(ResultMsg{Result: res})
		return
	}

	p.mu.Lock()
	fresh := 0
	for _, e := range res.Emails {
		if !p.seen[e.ID] {
			p.seen[e.ID] = true
			fresh++
		}
	}
	if !p.primed {
		p.primed = true
		fresh = 0
	}
	p.mu.Unlock()

	p.setStatus(StateIdle, "")
	p.sendResult(ResultMsg{Result: res, NewCount: fresh})
}

func (p *Poller) setStatus(state State, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = errMsg
	if state == StateIdle {
		p.status.LastSync = time.Now()
	}
}

// sendResult drops the result when nobody has drained the channel.
func (p *Poller) sendResult(msg ResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
	}
}

// WaitForNextResult returns a command that waits for the next poll. Call
// it again after each ResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	p.mu.Lock()
	stop := p.stopCh
	p.mu.Unlock()

	return func() tea.Msg {
		select {
		case msg := <-p.resultCh:
			return msg
		case <-stop:
			return nil
		}
	}
}

// Package style keeps the mailbox owner's writing profile and learns from
// the edits they make to composed drafts.
package style

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/store"
)

// Kind is the kind of a feedback signal.
type Kind string

const (
	KindTone     Kind = "tone"
	KindGreeting Kind = "greeting"
	KindClosing  Kind = "closing"
)

// ErrUnknownFeedback is returned for a feedback kind other than tone,
// greeting or closing.
var ErrUnknownFeedback = errors.New("unknown feedback kind")

// ParseKind validates a feedback kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindTone, KindGreeting, KindClosing:
		return k, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFeedback, s)
}

// Profile is the persisted WritingStyle. Every mutation is one
// Documents.Update, so concurrent callers never lose each other's writes.
type Profile struct {
	docs     store.Documents
	feedback store.FeedbackLog
	log      *log.Logger
}

// NewProfile returns a Profile stored in docs. When docs also implements
// store.FeedbackLog every accepted signal is appended to it.
func NewProfile(docs store.Documents, logger *log.Logger) *Profile {
	if logger == nil {
		logger = log.Default()
	}
	p := &Profile{docs: docs, log: logger.With("component", "style")}
	if fl, ok := docs.(store.FeedbackLog); ok {
		p.feedback = fl
	}
	return p
}

// Load returns the stored profile, or the defaults when none was saved.
func (p *Profile) Load(ctx context.Context) (model.WritingStyle, error) {
	var w model.WritingStyle
	err := store.GetJSON(ctx, p.docs, store.KeyWritingStyle, &w)
	if errors.Is(err, store.ErrNotFound) {
		return model.DefaultWritingStyle(), nil
	}
	if err != nil {
		return model.WritingStyle{}, fmt.Errorf("loading writing style: %w", err)
	}
	w.Normalize()
	return w, nil
}

// signal is one feedback value to apply.
type signal struct {
	kind  Kind
	value string
}

// apply mutates w and reports whether the signal added anything.
func (s signal) apply(w *model.WritingStyle) bool {
	switch s.kind {
	case KindTone:
		w.ToneMarkers = append(w.ToneMarkers, s.value)
		return true
	case KindGreeting:
		if slices.Contains(w.PreferredGreetings, s.value) {
			return false
		}
		w.PreferredGreetings = append(w.PreferredGreetings, s.value)
		return true
	case KindClosing:
		if slices.Contains(w.PreferredClosings, s.value) {
			return false
		}
		w.PreferredClosings = append(w.PreferredClosings, s.value)
		return true
	}
	return false
}

// update applies signals in one transaction and returns the resulting
// profile along with the signals that changed it. Nothing is written when
// no signal changes the profile.
func (p *Profile) update(ctx context.Context, signals ...signal) (model.WritingStyle, []signal, error) {
	var (
		out     model.WritingStyle
		applied []signal
	)
	err := store.UpdateJSON(ctx, p.docs, store.KeyWritingStyle, func(w *model.WritingStyle, found bool) error {
		applied = applied[:0]
		if !found {
			*w = model.DefaultWritingStyle()
		}
		w.Normalize()
		for _, s := range signals {
			if s.apply(w) {
				applied = append(applied, s)
			}
		}
		out = *w
		if len(applied) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return model.WritingStyle{}, nil, fmt.Errorf("updating writing style: %w", err)
	}

	for _, s := range applied {
		p.logFeedback(ctx, s)
	}
	return out, applied, nil
}

func (p *Profile) logFeedback(ctx context.Context, s signal) {
	if p.feedback == nil {
		return
	}
	// The profile is already committed; a lost log row is not fatal.
	if err := p.feedback.AppendFeedback(ctx, store.FeedbackEvent{Kind: string(s.kind), Value: s.value}); err != nil {
		p.log.Warn("recording feedback event", "kind", s.kind, "error", err)
	}
}

// RecordFeedback applies one feedback signal: tone markers are appended,
// greetings and closings are added only when absent. Kind is validated
// before anything is read or written.
func (p *Profile) RecordFeedback(ctx context.Context, kind, value string) (model.WritingStyle, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return model.WritingStyle{}, err
	}
	w, applied, err := p.update(ctx, signal{kind: k, value: value})
	if err != nil {
		return model.WritingStyle{}, err
	}
	if len(applied) > 0 {
		p.log.Debug("recorded style feedback", "kind", k, "value", value)
	}
	return w, nil
}

package style

import (
	"context"
	"fmt"
	"strings"
)

// boilerplateClosings are never learned; the composer already knows them.
var boilerplateClosings = map[string]bool{
	"Best,":    true,
	"Regards,": true,
	"Thanks,":  true,
}

// NothingLearned is the summary LearnFromEdit returns when the edit added
// no new preference.
const NothingLearned = "No new style preferences detected."

// LearnFromEdit compares a composed draft with the text the owner finally
// sent and records a new greeting and at most one new closing. It returns a
// one-line summary of what was learned.
func (p *Profile) LearnFromEdit(ctx context.Context, draft, final string) (string, error) {
	var signals []signal
	if g := greetingCandidate(final); g != "" {
		signals = append(signals, signal{kind: KindGreeting, value: g})
	}
	if c := closingCandidate(final); c != "" {
		signals = append(signals, signal{kind: KindClosing, value: c})
	}
	if len(signals) == 0 {
		return NothingLearned, nil
	}

	_, applied, err := p.update(ctx, signals...)
	if err != nil {
		return "", err
	}
	if len(applied) > 0 {
		p.log.Info("learned from edit", "learned", len(applied), "draft_len", len(draft), "final_len", len(final))
	}
	return summarize(applied), nil
}

func lines(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	out := strings.Split(text, "\n")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

// greetingCandidate returns the greeting word of the first line, or "" when
// the line opens with one of the stock greetings.
func greetingCandidate(final string) string {
	ls := lines(final)
	if len(ls) == 0 {
		return ""
	}
	first := ls[0]
	if strings.Contains(first, "Hi") || strings.Contains(first, "Hello") {
		return ""
	}
	phrase, _, _ := strings.Cut(first, ",")
	fields := strings.Fields(phrase)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// closingCandidate scans the last two lines for a sign-off with a comma.
func closingCandidate(final string) string {
	ls := lines(final)
	if len(ls) > 2 {
		ls = ls[len(ls)-2:]
	}
	for _, l := range ls {
		if boilerplateClosings[l] {
			continue
		}
		if strings.Contains(l, ",") {
			return l
		}
	}
	return ""
}

func summarize(applied []signal) string {
	var parts []string
	for _, s := range applied {
		parts = append(parts, fmt.Sprintf("learned %s %q", s.kind, s.value))
	}
	if len(parts) == 0 {
		return NothingLearned
	}
	out := strings.Join(parts, "; ") + "."
	return strings.ToUpper(out[:1]) + out[1:]
}

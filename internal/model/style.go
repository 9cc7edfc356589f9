package model

// DefaultProfileName names the only writing-style profile.
const DefaultProfileName = "default"

// WritingStyle is the learned writing profile of the mailbox owner.
type WritingStyle struct {
	ProfileName string `json:"profile_name"`

	// Formality and Brevity are preferences in [0,1].
	Formality float64 `json:"formality"`
	Brevity   float64 `json:"brevity"`

	// PreferredGreetings and PreferredClosings are ordered; the first
	// entry is used when composing.
	PreferredGreetings []string `json:"preferred_greetings"`
	PreferredClosings  []string `json:"preferred_closings"`

	ToneMarkers []string `json:"tone_markers"`
}

// DefaultWritingStyle returns the profile used before any feedback.
func DefaultWritingStyle() WritingStyle {
	return WritingStyle{
		ProfileName:        DefaultProfileName,
		Formality:          0.5,
		Brevity:            0.5,
		PreferredGreetings: []string{"Hi", "Hello"},
		PreferredClosings:  []string{"Best,", "Regards,"},
		ToneMarkers:        []string{},
	}
}

// Normalize clamps the numeric preferences into [0,1], fills a missing
// profile name and replaces nil lists with empty ones.
func (w *WritingStyle) Normalize() {
	if w.ProfileName == "" {
		w.ProfileName = DefaultProfileName
	}
	w.Formality = clamp01(w.Formality)
	w.Brevity = clamp01(w.Brevity)
	if w.PreferredGreetings == nil {
		w.PreferredGreetings = []string{}
	}
	if w.PreferredClosings == nil {
		w.PreferredClosings = []string{}
	}
	if w.ToneMarkers == nil {
		w.ToneMarkers = []string{}
	}
}

// Greeting returns the first preferred greeting, or "Hi".
func (w WritingStyle) Greeting() string {
	if len(w.PreferredGreetings) == 0 {
		return "Hi"
	}
	return w.PreferredGreetings[0]
}

// Closing returns the first preferred closing, or "Best,".
func (w WritingStyle) Closing() string {
	if len(w.PreferredClosings) == 0 {
		return "Best,"
	}
	return w.PreferredClosings[0]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// DraftReply is a composed reply ready for review.
type DraftReply struct {
	EmailID         string `json:"email_id"`
	Content         string `json:"content"`
	Tone            string `json:"tone"`
	MimickedStyleID string `json:"mimicked_style_id"`
}

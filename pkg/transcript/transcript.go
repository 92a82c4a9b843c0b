// Package transcript turns the STT event stream into complete user
// utterances and barge-in signals.
package transcript

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/parleyvoice/go-parley/pkg/stt"
)

// Utterance is a complete unit of user speech, ready for a reply.
type Utterance struct {
	// Text is the final transcript text.
	Text string

	// Confidence is the recognizer's confidence in the last segment.
	Confidence float64

	// At is when the utterance completed.
	At time.Time
}

// Aggregator accumulates finalized transcript segments until the
// recognizer signals the end of speech, then emits one utterance.
// Empty finals (silence, noise) never produce an utterance.
type Aggregator struct {
	segments   []string
	partial    string
	confidence float64
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Feed consumes one STT event. It returns a complete utterance and
// true when the event closed out a unit of speech.
func (a *Aggregator) Feed(ev stt.Event) (Utterance, bool) {
	text := strings.TrimSpace(ev.Text)

	if text != "" {
		a.partial = text
		if ev.IsFinal {
			a.segments = append(a.segments, text)
			a.confidence = ev.Confidence
		}
	}

	if !ev.SpeechFinal {
		return Utterance{}, false
	}

	joined := strings.TrimSpace(strings.Join(a.segments, " "))
	a.reset()
	if joined == "" {
		return Utterance{}, false
	}

	return Utterance{
		Text:       joined,
		Confidence: a.confidence,
		At:         time.Now(),
	}, true
}

// Partial returns the most recent transcript text, final or not.
func (a *Aggregator) Partial() string {
	return a.partial
}

// Reset discards any accumulated segments.
func (a *Aggregator) Reset() {
	a.reset()
	a.partial = ""
}

func (a *Aggregator) reset() {
	a.segments = nil
}

// BargeInDetector decides whether a transcript event counts as the
// user starting to speak. A minimum length filters out coughs and
// recognizer noise.
type BargeInDetector struct {
	// MinRunes is the shortest partial that counts as speech.
	MinRunes int
}

// NewBargeInDetector creates a detector with the given threshold.
// A non-positive threshold accepts any non-empty partial.
func NewBargeInDetector(minRunes int) *BargeInDetector {
	return &BargeInDetector{MinRunes: minRunes}
}

// Triggered reports whether the event shows real user speech.
func (d *BargeInDetector) Triggered(ev stt.Event) bool {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return false
	}
	if d.MinRunes <= 0 {
		return true
	}
	return utf8.RuneCountInString(text) >= d.MinRunes
}

package transcript_test

import (
	"testing"

	"github.com/parleyvoice/go-parley/pkg/stt"
	"github.com/parleyvoice/go-parley/pkg/transcript"
)

func TestAggregator(t *testing.T) {
	t.Run("emits on speech final", func(t *testing.T) {
		agg := transcript.NewAggregator()

		if _, done := agg.Feed(stt.Event{Text: "hello", IsFinal: false}); done {
			t.Error("interim should not complete an utterance")
		}
		if _, done := agg.Feed(stt.Event{Text: "hello there", IsFinal: true}); done {
			t.Error("final without speech final should not complete")
		}

		utt, done := agg.Feed(stt.Event{Text: "how are you", IsFinal: true, SpeechFinal: true, Confidence: 0.93})
		if !done {
			t.Fatal("expected completed utterance")
		}
		if utt.Text != "hello there how are you" {
			t.Errorf("unexpected text: %q", utt.Text)
		}
		if utt.Confidence != 0.93 {
			t.Errorf("unexpected confidence: %v", utt.Confidence)
		}
		if utt.At.IsZero() {
			t.Error("expected timestamp")
		}
	})

	t.Run("suppresses empty finals", func(t *testing.T) {
		agg := transcript.NewAggregator()

		if _, done := agg.Feed(stt.Event{Text: "", IsFinal: true, SpeechFinal: true}); done {
			t.Error("empty final must not produce an utterance")
		}
		if _, done := agg.Feed(stt.Event{Text: "   ", IsFinal: true, SpeechFinal: true}); done {
			t.Error("whitespace final must not produce an utterance")
		}
	})

	t.Run("resets between utterances", func(t *testing.T) {
		agg := transcript.NewAggregator()

		agg.Feed(stt.Event{Text: "first", IsFinal: true, SpeechFinal: true})
		utt, done := agg.Feed(stt.Event{Text: "second", IsFinal: true, SpeechFinal: true})
		if !done {
			t.Fatal("expected second utterance")
		}
		if utt.Text != "second" {
			t.Errorf("first utterance leaked into second: %q", utt.Text)
		}
	})

	t.Run("tracks latest partial", func(t *testing.T) {
		agg := transcript.NewAggregator()

		agg.Feed(stt.Event{Text: "hel"})
		agg.Feed(stt.Event{Text: "hello wor"})
		if got := agg.Partial(); got != "hello wor" {
			t.Errorf("unexpected partial: %q", got)
		}

		agg.Reset()
		if got := agg.Partial(); got != "" {
			t.Errorf("partial survived reset: %q", got)
		}
	})

	t.Run("speech final without new text flushes accumulated", func(t *testing.T) {
		agg := transcript.NewAggregator()

		agg.Feed(stt.Event{Text: "stop", IsFinal: true})
		utt, done := agg.Feed(stt.Event{Text: "", SpeechFinal: true})
		if !done {
			t.Fatal("expected flush of accumulated segments")
		}
		if utt.Text != "stop" {
			t.Errorf("unexpected text: %q", utt.Text)
		}
	})
}

func TestBargeInDetector(t *testing.T) {
	detector := transcript.NewBargeInDetector(3)

	tests := []struct {
		name string
		ev   stt.Event
		want bool
	}{
		{"empty text", stt.Event{Text: ""}, false},
		{"whitespace only", stt.Event{Text: "   "}, false},
		{"below threshold", stt.Event{Text: "uh"}, false},
		{"at threshold", stt.Event{Text: "wai"}, true},
		{"real speech", stt.Event{Text: "wait a second"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detector.Triggered(tt.ev); got != tt.want {
				t.Errorf("Triggered(%q) = %v, want %v", tt.ev.Text, got, tt.want)
			}
		})
	}

	t.Run("zero threshold accepts any speech", func(t *testing.T) {
		any := transcript.NewBargeInDetector(0)
		if !any.Triggered(stt.Event{Text: "a"}) {
			t.Error("expected trigger on any non-empty text")
		}
	})
}

package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/session"
)

func collectSegments(t *testing.T, ctx context.Context, deltas []string, maxLen int) ([]session.Segment, string, error) {
	t.Helper()
	stream := inference.NewScriptedStream(ctx, deltas, 0)
	seg := &session.Segmenter{MaxSegmentLen: maxLen}

	var segments []session.Segment
	full, err := seg.Consume(ctx, stream, func(s session.Segment) {
		segments = append(segments, s)
	})
	return segments, full, err
}

func TestSegmenter(t *testing.T) {
	ctx := context.Background()

	t.Run("cuts at sentence boundaries", func(t *testing.T) {
		segments, full, err := collectSegments(t, ctx,
			[]string{"Hello ", "there. ", "How are ", "you today? ", "Good."}, 200)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if full != "Hello there. How are you today? Good." {
			t.Errorf("unexpected full text: %q", full)
		}
		want := []string{"Hello there.", "How are you today?", "Good."}
		if len(segments) != len(want) {
			t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
		}
		for i, w := range want {
			if segments[i].Text != w {
				t.Errorf("segment %d = %q, want %q", i, segments[i].Text, w)
			}
			if segments[i].Seq != i {
				t.Errorf("segment %d has seq %d", i, segments[i].Seq)
			}
		}
		if !segments[len(segments)-1].Last {
			t.Error("final segment not marked last")
		}
	})

	t.Run("sequence numbers are monotonic", func(t *testing.T) {
		segments, _, err := collectSegments(t, ctx,
			[]string{"One. ", "Two. ", "Three. ", "Four."}, 200)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		for i, s := range segments {
			if s.Seq != i {
				t.Fatalf("segment %d has seq %d", i, s.Seq)
			}
		}
	})

	t.Run("length cap splits run-on text", func(t *testing.T) {
		long := strings.Repeat("word ", 30) // 150 chars, no terminator
		segments, _, err := collectSegments(t, ctx, []string{long, long}, 80)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if len(segments) < 3 {
			t.Fatalf("expected multiple segments, got %d", len(segments))
		}
		for _, s := range segments {
			if len(s.Text) > 80 {
				t.Errorf("segment exceeds cap: %d bytes", len(s.Text))
			}
		}
	})

	t.Run("length cap keeps multibyte runes intact", func(t *testing.T) {
		// 3 bytes per rune and no spaces, so every cut falls back to
		// the length cap and must land on a rune boundary.
		long := strings.Repeat("音", 60)
		segments, full, err := collectSegments(t, ctx, []string{long, long}, 80)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if len(segments) < 3 {
			t.Fatalf("expected multiple segments, got %d", len(segments))
		}
		for i, s := range segments {
			if !utf8.ValidString(s.Text) {
				t.Errorf("segment %d is not valid UTF-8: %q", i, s.Text)
			}
			if len(s.Text) > 80 {
				t.Errorf("segment %d exceeds cap: %d bytes", i, len(s.Text))
			}
		}
		if full != long+long {
			t.Error("full text mangled by segmentation")
		}
	})

	t.Run("does not split decimals", func(t *testing.T) {
		segments, _, err := collectSegments(t, ctx,
			[]string{"The price is 3.50 dollars today. ", "Thanks."}, 200)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if segments[0].Text != "The price is 3.50 dollars today." {
			t.Errorf("decimal split: %q", segments[0].Text)
		}
	})

	t.Run("cancellation stops emission", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		stream := inference.NewScriptedStream(cancelCtx, []string{"One. ", "Two. ", "Three."}, 0)
		seg := &session.Segmenter{MaxSegmentLen: 200}

		var segments []session.Segment
		_, err := seg.Consume(cancelCtx, stream, func(s session.Segment) {
			segments = append(segments, s)
			if len(segments) == 1 {
				cancel()
			}
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		// The already emitted segment stands.
		if len(segments) == 0 || segments[0].Text != "One." {
			t.Errorf("unexpected segments: %+v", segments)
		}
	})

	t.Run("stream error surfaces with partial text", func(t *testing.T) {
		stream := &failingStream{deltas: []string{"Partial "}, err: errors.New("upstream died")}
		seg := &session.Segmenter{MaxSegmentLen: 200}

		full, err := seg.Consume(ctx, stream, func(session.Segment) {})
		if err == nil {
			t.Fatal("expected error")
		}
		if full != "Partial " {
			t.Errorf("expected partial text, got %q", full)
		}
	})
}

// failingStream emits its deltas then an error.
type failingStream struct {
	deltas []string
	pos    int
	err    error
}

func (f *failingStream) Recv() (*inference.StreamChunk, error) {
	if f.pos >= len(f.deltas) {
		return nil, f.err
	}
	delta := f.deltas[f.pos]
	f.pos++
	return &inference.StreamChunk{Delta: delta}, nil
}

func (f *failingStream) Close() error { return nil }

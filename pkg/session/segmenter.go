package session

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/parleyvoice/go-parley/pkg/inference"
)

// Segment is one synthesizable unit of an assistant reply.
type Segment struct {
	// Seq is the segment's position in the reply, starting at 0.
	Seq int

	// Text is the segment content.
	Text string

	// Last marks the final segment of a completed reply.
	Last bool
}

// DefaultMaxSegmentLen bounds segment size when no sentence boundary
// appears. Long enough for a natural clause, short enough to keep
// time-to-first-audio low.
const DefaultMaxSegmentLen = 200

// Segmenter cuts a streaming reply into segments at sentence
// boundaries, falling back to a length cap for run-on text.
type Segmenter struct {
	// MaxSegmentLen is the fallback cut length in bytes.
	MaxSegmentLen int
}

// NewSegmenter creates a segmenter with the default length cap.
func NewSegmenter() *Segmenter {
	return &Segmenter{MaxSegmentLen: DefaultMaxSegmentLen}
}

// Consume reads the stream to completion, calling emit for each
// segment in order. It returns the full reply text. On cancellation
// it stops immediately; segments already emitted stand, and the
// returned error is the context's.
func (s *Segmenter) Consume(ctx context.Context, stream inference.Stream, emit func(Segment)) (string, error) {
	maxLen := s.MaxSegmentLen
	if maxLen <= 0 {
		maxLen = DefaultMaxSegmentLen
	}

	var full strings.Builder
	var buf string
	seq := 0

	flush := func(text string, last bool) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		emit(Segment{Seq: seq, Text: text, Last: last})
		seq++
	}

	for {
		select {
		case <-ctx.Done():
			stream.Close()
			return full.String(), ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err != nil {
			stream.Close()
			return full.String(), err
		}
		if chunk.Done {
			flush(buf, true)
			stream.Close()
			return full.String(), nil
		}

		full.WriteString(chunk.Delta)
		buf += chunk.Delta

		for {
			cut := sentenceBoundary(buf)
			if cut < 0 && len(buf) >= maxLen {
				cut = lengthBoundary(buf, maxLen)
			}
			if cut < 0 {
				break
			}
			flush(buf[:cut], false)
			buf = buf[cut:]
		}
	}
}

// sentenceBoundary returns the index just past the first sentence
// terminator followed by whitespace, or -1 if none.
func sentenceBoundary(s string) int {
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		rest := s[i+1:]
		if rest == "" {
			// Terminator at the end of the buffer may be mid-number
			// or mid-abbreviation; wait for more text.
			return -1
		}
		next, _ := firstRune(rest)
		if unicode.IsSpace(next) {
			return i + 1
		}
	}
	return -1
}

// lengthBoundary finds the last space before maxLen, or for unbroken
// text the nearest rune boundary at or below maxLen.
func lengthBoundary(s string, maxLen int) int {
	if idx := strings.LastIndex(s[:maxLen], " "); idx > 0 {
		return idx + 1
	}
	cut := maxLen
	if cut >= len(s) {
		return len(s)
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return maxLen
	}
	return cut
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

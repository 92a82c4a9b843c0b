package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/parleyvoice/go-parley/pkg/audio"
	"github.com/parleyvoice/go-parley/pkg/tts"
)

// DefaultSynthWorkers bounds concurrent synthesis calls per session.
const DefaultSynthWorkers = 2

// SegmentAudio is synthesized audio for one reply segment.
type SegmentAudio struct {
	Segment Segment

	// Audio is raw PCM bytes. Empty when Skipped.
	Audio []byte

	// SampleRate of the audio.
	SampleRate int

	// Skipped is set when synthesis failed and the segment's audio
	// was dropped. The segment text was already delivered.
	Skipped bool
}

// Scheduler synthesizes reply segments concurrently while delivering
// audio strictly in segment order. Later segments buffer behind
// earlier ones; cancellation discards in-flight and late results.
type Scheduler struct {
	provider tts.Provider
	logger   *slog.Logger

	ctx     context.Context
	sem     chan struct{}
	pending chan chan SegmentAudio
	out     chan SegmentAudio

	closeOnce sync.Once
}

// NewScheduler starts a scheduler bound to ctx. Callers must either
// Close it or cancel ctx.
func NewScheduler(ctx context.Context, provider tts.Provider, workers int, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultSynthWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		provider: provider,
		logger:   logger.With("component", "session.scheduler"),
		ctx:      ctx,
		sem:      make(chan struct{}, workers),
		pending:  make(chan chan SegmentAudio, 64),
		out:      make(chan SegmentAudio, 8),
	}
	go s.deliver()
	return s
}

// Enqueue submits a segment for synthesis. Segments must arrive in
// Seq order; audio comes out of Output in the same order.
func (s *Scheduler) Enqueue(seg Segment) {
	result := make(chan SegmentAudio, 1)

	select {
	case s.pending <- result:
	case <-s.ctx.Done():
		return
	}

	go func() {
		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			result <- SegmentAudio{Segment: seg, Skipped: true}
			return
		}
		defer func() { <-s.sem }()

		result <- s.synthesize(seg)
	}()
}

// Close signals that no more segments are coming. Output closes once
// all enqueued segments have been delivered.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.pending) })
}

// Output delivers synthesized audio in segment order.
func (s *Scheduler) Output() <-chan SegmentAudio {
	return s.out
}

// deliver forwards results in enqueue order.
func (s *Scheduler) deliver() {
	defer close(s.out)

	for {
		var result chan SegmentAudio
		var ok bool
		select {
		case result, ok = <-s.pending:
			if !ok {
				return
			}
		case <-s.ctx.Done():
			return
		}

		var audio SegmentAudio
		select {
		case audio = <-result:
		case <-s.ctx.Done():
			return
		}

		select {
		case s.out <- audio:
		case <-s.ctx.Done():
			return
		}
	}
}

// synthesize runs one segment with a single retry. Failure skips the
// segment's audio rather than failing the reply.
func (s *Scheduler) synthesize(seg Segment) SegmentAudio {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if s.ctx.Err() != nil {
			return SegmentAudio{Segment: seg, Skipped: true}
		}

		result, err := s.provider.Synthesize(s.ctx, seg.Text)
		if err == nil {
			s.logger.Debug("segment synthesized",
				"seq", seg.Seq,
				"duration", audio.Duration(result.Audio, result.Format.SampleRate),
			)
			return SegmentAudio{
				Segment:    seg,
				Audio:      result.Audio,
				SampleRate: result.Format.SampleRate,
			}
		}
		lastErr = err
	}

	s.logger.Warn("segment synthesis failed, skipping audio",
		"seq", seg.Seq,
		"error", lastErr,
	)
	return SegmentAudio{Segment: seg, Skipped: true}
}

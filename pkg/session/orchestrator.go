package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/prompt"
	"github.com/parleyvoice/go-parley/pkg/stt"
	"github.com/parleyvoice/go-parley/pkg/transcript"
	"github.com/parleyvoice/go-parley/pkg/tts"
)

// apologyText is spoken when a turn fails irrecoverably.
const apologyText = "Sorry, I'm having trouble answering right now. Could you say that again?"

// genRetryDelay is the backoff before the single generation retry.
const genRetryDelay = 150 * time.Millisecond

// Assembler builds the prompt for a turn.
type Assembler interface {
	Assemble(ctx context.Context, profile *customer.Profile, history []inference.Message, utterance string) (*prompt.Prompt, error)
}

// Sink receives orchestrator output events. Nil fields are skipped.
// Callbacks run on orchestrator goroutines and must not block.
type Sink struct {
	OnStatus     func(state State)
	OnTranscript func(text string, isFinal bool)
	OnResponse   func(seq int, text string)
	OnAudio      func(audio SegmentAudio)
	OnAudioEnd   func()
	OnError      func(stage string, err error)
}

func (s *Sink) status(state State) {
	if s.OnStatus != nil {
		s.OnStatus(state)
	}
}

func (s *Sink) transcript(text string, isFinal bool) {
	if s.OnTranscript != nil {
		s.OnTranscript(text, isFinal)
	}
}

func (s *Sink) response(seq int, text string) {
	if s.OnResponse != nil {
		s.OnResponse(seq, text)
	}
}

func (s *Sink) audio(a SegmentAudio) {
	if s.OnAudio != nil {
		s.OnAudio(a)
	}
}

func (s *Sink) audioEnd() {
	if s.OnAudioEnd != nil {
		s.OnAudioEnd()
	}
}

func (s *Sink) error(stage string, err error) {
	if s.OnError != nil {
		s.OnError(stage, err)
	}
}

// Orchestrator drives one session's turn-taking state machine:
// Idle, Listening, Thinking, Speaking, with barge-in returning to
// Listening from anywhere. At most one pipeline run is live; a newer
// utterance or barge-in cancels the older run.
type Orchestrator struct {
	session   *Session
	stt       stt.Provider
	assembler Assembler
	llm       inference.Provider
	tts       tts.Provider
	sink      *Sink
	cfg       *Config
	logger    *slog.Logger

	aggregator *transcript.Aggregator
	detector   *transcript.BargeInDetector

	stateMu sync.Mutex
	state   State

	ttsMu sync.Mutex

	runMu     sync.Mutex
	runCancel context.CancelFunc
	runDone   chan struct{}
}

// NewOrchestrator wires an orchestrator for one session.
func NewOrchestrator(sess *Session, sttProvider stt.Provider, assembler Assembler, llm inference.Provider, ttsProvider tts.Provider, sink *Sink, opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if sink == nil {
		sink = &Sink{}
	}

	return &Orchestrator{
		session:    sess,
		stt:        sttProvider,
		assembler:  assembler,
		llm:        llm,
		tts:        ttsProvider,
		sink:       sink,
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "session.orchestrator", "session_id", sess.ID),
		aggregator: transcript.NewAggregator(),
		detector:   transcript.NewBargeInDetector(cfg.MinPartialRunes),
		state:      StateIdle,
	}
}

// setState updates the state, emitting a status event on change.
func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	changed := o.state != s
	o.state = s
	o.stateMu.Unlock()
	if changed {
		o.sink.status(s)
	}
}

// State returns the current turn-taking state.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// SetSynthesizer swaps the synthesis provider, typically after a
// mid-session voice change. A run already in flight keeps its old
// provider; the next turn picks up the new one. The outgoing provider
// is closed, which releases idle connections without touching calls
// still using it.
func (o *Orchestrator) SetSynthesizer(p tts.Provider) {
	if p == nil {
		return
	}
	o.ttsMu.Lock()
	old := o.tts
	o.tts = p
	o.ttsMu.Unlock()

	if old != nil && old != p {
		if err := old.Close(); err != nil {
			o.logger.Warn("closing replaced synthesizer", "error", err)
		}
	}
}

// synthesizer returns the current synthesis provider.
func (o *Orchestrator) synthesizer() tts.Provider {
	o.ttsMu.Lock()
	defer o.ttsMu.Unlock()
	return o.tts
}

// CloseSynthesizer closes the active synthesis provider. Call once
// the session is torn down; earlier providers replaced by
// SetSynthesizer are already closed.
func (o *Orchestrator) CloseSynthesizer() error {
	return o.synthesizer().Close()
}

// SendAudio forwards caller audio to the transcription stream. It
// never blocks on generation or synthesis.
func (o *Orchestrator) SendAudio(pcm16 []byte) error {
	return o.stt.SendAudio(pcm16)
}

// Run drives the session until ctx is cancelled, the transcription
// stream dies, or the idle timeout fires. It owns the control loop;
// callers feed audio via SendAudio from their own goroutine.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.stt.Start(ctx); err != nil {
		o.sink.error("stt", err)
		return err
	}
	defer o.stt.Close()
	defer o.interruptRun()

	o.greet(ctx)
	o.setState(StateListening)

	idle := time.NewTimer(o.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idle.C:
			o.logger.Info("idle timeout, ending session")
			return nil

		case ev, ok := <-o.stt.Events():
			if !ok {
				err := o.stt.Err()
				if err != nil {
					o.sink.error("stt", err)
				}
				return err
			}
			o.handleEvent(ctx, ev, idle)
		}
	}
}

// handleEvent processes one transcription event: forwards it, checks
// barge-in, and starts a run when an utterance completes.
func (o *Orchestrator) handleEvent(ctx context.Context, ev stt.Event, idle *time.Timer) {
	if ev.Text != "" {
		o.sink.transcript(ev.Text, ev.IsFinal)
	}

	if state := o.State(); state == StateThinking || state == StateSpeaking {
		if o.detector.Triggered(ev) {
			o.logger.Debug("barge-in", "partial", ev.Text)
			o.interruptRun()
			o.setState(StateListening)
		}
	}

	utt, done := o.aggregator.Feed(ev)
	if !done {
		return
	}

	if !idle.Stop() {
		select {
		case <-idle.C:
		default:
		}
	}
	idle.Reset(o.cfg.IdleTimeout)

	// A newer utterance always wins over a live run.
	o.interruptRun()
	o.startRun(ctx, utt)
}

// startRun launches the pipeline for one utterance.
func (o *Orchestrator) startRun(ctx context.Context, utt transcript.Utterance) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.runMu.Lock()
	o.runCancel = cancel
	o.runDone = done
	o.runMu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		o.run(runCtx, utt)
	}()
}

// interruptRun cancels the live run, if any, and waits for it to
// wind down. Safe to call with no run live.
func (o *Orchestrator) interruptRun() {
	o.runMu.Lock()
	cancel := o.runCancel
	done := o.runDone
	o.runCancel = nil
	o.runDone = nil
	o.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run executes one utterance's pipeline: assemble, generate, segment,
// synthesize, deliver. Cancelled runs leave no trace in history.
func (o *Orchestrator) run(ctx context.Context, utt transcript.Utterance) {
	start := time.Now()
	o.setState(StateThinking)

	p, err := o.assembler.Assemble(ctx, o.session.Profile, o.session.History(), utt.Text)
	if err != nil {
		o.failTurn(ctx, "assemble", err)
		return
	}
	if p.Ungrounded {
		o.logger.Warn("turn running ungrounded")
	}

	stream, err := o.openStream(ctx, p)
	if err != nil {
		o.failTurn(ctx, "generate", err)
		return
	}

	scheduler := NewScheduler(ctx, o.synthesizer(), o.cfg.SynthWorkers, o.cfg.Logger)
	segmenter := &Segmenter{MaxSegmentLen: o.cfg.MaxSegmentLen}

	type genResult struct {
		full string
		err  error
	}
	genDone := make(chan genResult, 1)

	go func() {
		full, err := segmenter.Consume(ctx, stream, func(seg Segment) {
			o.sink.response(seg.Seq, seg.Text)
			scheduler.Enqueue(seg)
		})
		scheduler.Close()
		genDone <- genResult{full: full, err: err}
	}()

	sentAudio := false
	for audio := range scheduler.Output() {
		if audio.Skipped {
			continue
		}
		if !sentAudio {
			o.setState(StateSpeaking)
			sentAudio = true
		}
		o.sink.audio(audio)
	}

	gen := <-genDone

	if ctx.Err() != nil {
		// Barge-in or teardown: segments already sent stand, nothing
		// enters history.
		return
	}
	if gen.err != nil {
		o.failTurn(ctx, "generate", gen.err)
		return
	}

	o.sink.audioEnd()
	o.session.AppendTurn(utt.Text, gen.full)
	o.setState(StateListening)

	o.logger.Info("turn complete",
		"chars", len(gen.full),
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

// openStream starts reply generation, retrying once on failure before
// giving the turn up.
func (o *Orchestrator) openStream(ctx context.Context, p *prompt.Prompt) (inference.Stream, error) {
	req := &inference.ChatRequest{Messages: p.All()}

	stream, err := o.llm.Stream(ctx, req)
	if err == nil {
		return stream, nil
	}

	o.logger.Warn("generation failed, retrying", "error", err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(genRetryDelay):
	}
	return o.llm.Stream(ctx, req)
}

// failTurn logs a turn failure, speaks an apology, and returns the
// session to listening. Cancelled turns stay silent.
func (o *Orchestrator) failTurn(ctx context.Context, stage string, err error) {
	if ctx.Err() != nil {
		return
	}

	o.logger.Error("turn failed", "stage", stage, "error", err)
	o.sink.error(stage, err)
	o.speak(ctx, apologyText)
	o.setState(StateListening)
}

// greet speaks the customer's greeting at session start.
func (o *Orchestrator) greet(ctx context.Context) {
	greeting := o.session.Profile.Greeting
	if greeting == "" {
		return
	}
	if o.speak(ctx, greeting) {
		o.session.AppendAssistant(greeting)
	}
}

// speak synthesizes and delivers a single standalone text. Returns
// true when audio was delivered.
func (o *Orchestrator) speak(ctx context.Context, text string) bool {
	o.sink.response(0, text)

	result, err := o.synthesizer().Synthesize(ctx, text)
	if err != nil {
		o.logger.Error("synthesis failed", "error", err)
		o.sink.error("synthesize", err)
		o.sink.audioEnd()
		return false
	}

	o.setState(StateSpeaking)
	o.sink.audio(SegmentAudio{
		Segment:    Segment{Seq: 0, Text: text, Last: true},
		Audio:      result.Audio,
		SampleRate: result.Format.SampleRate,
	})
	o.sink.audioEnd()
	return true
}

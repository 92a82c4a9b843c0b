package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/prompt"
	"github.com/parleyvoice/go-parley/pkg/session"
	"github.com/parleyvoice/go-parley/pkg/stt"
	"github.com/parleyvoice/go-parley/pkg/tts"
)

// recorder collects sink events for assertions.
type recorder struct {
	mu          sync.Mutex
	statuses    []session.State
	transcripts []string
	responses   []string
	audio       []string
	audioEnds   int
	errors      []string
}

func (r *recorder) sink() *session.Sink {
	return &session.Sink{
		OnStatus: func(state session.State) {
			r.mu.Lock()
			r.statuses = append(r.statuses, state)
			r.mu.Unlock()
		},
		OnTranscript: func(text string, isFinal bool) {
			r.mu.Lock()
			r.transcripts = append(r.transcripts, text)
			r.mu.Unlock()
		},
		OnResponse: func(seq int, text string) {
			r.mu.Lock()
			r.responses = append(r.responses, text)
			r.mu.Unlock()
		},
		OnAudio: func(audio session.SegmentAudio) {
			r.mu.Lock()
			r.audio = append(r.audio, string(audio.Audio))
			r.mu.Unlock()
		},
		OnAudioEnd: func() {
			r.mu.Lock()
			r.audioEnds++
			r.mu.Unlock()
		},
		OnError: func(stage string, err error) {
			r.mu.Lock()
			r.errors = append(r.errors, stage+": "+err.Error())
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		statuses:    append([]session.State(nil), r.statuses...),
		transcripts: append([]string(nil), r.transcripts...),
		responses:   append([]string(nil), r.responses...),
		audio:       append([]string(nil), r.audio...),
		audioEnds:   r.audioEnds,
		errors:      append([]string(nil), r.errors...),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type fixture struct {
	sess   *session.Session
	stt    *stt.Mock
	llm    *inference.Mock
	rec    *recorder
	orch   *session.Orchestrator
	runErr chan error
	cancel context.CancelFunc
}

func newFixture(t *testing.T, greeting string, llm *inference.Mock, opts ...session.Option) *fixture {
	t.Helper()

	profile := &customer.Profile{
		ID:          "acme",
		CompanyName: "Acme Corp",
		BotName:     "Ava",
		Personality: "Be warm and direct.",
		Greeting:    greeting,
	}
	sess := session.NewSession(profile, 20)
	sttMock := stt.NewMock()
	rec := &recorder{}

	assembler := prompt.NewAssembler(nil) // ungrounded keeps fixtures simple
	orch := session.NewOrchestrator(sess, sttMock, assembler, llm, tts.NewEchoMock(), rec.sink(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		runErr <- orch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &fixture{sess: sess, stt: sttMock, llm: llm, rec: rec, orch: orch, runErr: runErr, cancel: cancel}
}

func speechFinal(text string) stt.Event {
	return stt.Event{Text: text, IsFinal: true, SpeechFinal: true}
}

func TestOrchestratorGreeting(t *testing.T) {
	f := newFixture(t, "Welcome to Acme!", inference.NewMock())

	waitFor(t, time.Second, func() bool { return f.rec.snapshot().audioEnds >= 1 })

	snap := f.rec.snapshot()
	if len(snap.responses) == 0 || snap.responses[0] != "Welcome to Acme!" {
		t.Errorf("greeting text not sent: %v", snap.responses)
	}
	if len(snap.audio) == 0 || snap.audio[0] != "Welcome to Acme!" {
		t.Errorf("greeting audio not sent: %v", snap.audio)
	}

	history := f.sess.History()
	if len(history) != 1 || history[0].Role != inference.RoleAssistant {
		t.Errorf("greeting not in history: %+v", history)
	}

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
}

func TestOrchestratorCompleteTurn(t *testing.T) {
	llm := inference.NewMock()
	llm.Reply = "Refunds take five days. Anything else?"
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })

	f.stt.Emit(stt.Event{Text: "how long do", IsFinal: false})
	f.stt.Emit(speechFinal("how long do refunds take"))

	waitFor(t, 2*time.Second, func() bool { return f.rec.snapshot().audioEnds >= 1 })

	snap := f.rec.snapshot()

	if len(snap.transcripts) < 2 {
		t.Errorf("transcripts not forwarded: %v", snap.transcripts)
	}

	// Reply split at sentence boundaries, audio in segment order.
	wantSegments := []string{"Refunds take five days.", "Anything else?"}
	if len(snap.responses) != len(wantSegments) {
		t.Fatalf("expected %d response segments, got %v", len(wantSegments), snap.responses)
	}
	for i, w := range wantSegments {
		if snap.responses[i] != w {
			t.Errorf("response %d = %q, want %q", i, snap.responses[i], w)
		}
		if snap.audio[i] != w {
			t.Errorf("audio %d = %q, want %q", i, snap.audio[i], w)
		}
	}

	// Thinking and Speaking were both visited, ending in Listening.
	var visited []string
	for _, s := range snap.statuses {
		visited = append(visited, s.String())
	}
	joined := strings.Join(visited, ",")
	if !strings.Contains(joined, "thinking") || !strings.Contains(joined, "speaking") {
		t.Errorf("missing states: %s", joined)
	}
	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })

	history := f.sess.History()
	if len(history) != 2 {
		t.Fatalf("expected user+assistant history, got %+v", history)
	}
	if history[0].Content != "how long do refunds take" {
		t.Errorf("user turn missing: %+v", history[0])
	}
	if history[1].Content != llm.Reply {
		t.Errorf("assistant turn missing: %+v", history[1])
	}
}

func TestOrchestratorBargeIn(t *testing.T) {
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		deltas := make([]string, 40)
		for i := range deltas {
			deltas[i] = "word "
		}
		return inference.NewScriptedStream(ctx, deltas, 30*time.Millisecond), nil
	}
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
	f.stt.Emit(speechFinal("tell me a long story"))

	waitFor(t, 2*time.Second, func() bool { return f.orch.State() != session.StateListening })

	// User speaks over the reply.
	f.stt.Emit(stt.Event{Text: "wait stop", IsFinal: false})

	waitFor(t, 2*time.Second, func() bool { return f.orch.State() == session.StateListening })

	// Cancelled run leaves no history.
	if history := f.sess.History(); len(history) != 0 {
		t.Errorf("cancelled run polluted history: %+v", history)
	}
}

func TestOrchestratorNewUtteranceCancelsOld(t *testing.T) {
	llm := inference.NewMock()
	var mu sync.Mutex
	streams := 0
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		mu.Lock()
		streams++
		first := streams == 1
		mu.Unlock()
		if first {
			deltas := make([]string, 40)
			for i := range deltas {
				deltas[i] = "slow "
			}
			return inference.NewScriptedStream(ctx, deltas, 30*time.Millisecond), nil
		}
		return inference.NewScriptedStream(ctx, []string{"Second ", "answer."}, 0), nil
	}
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
	f.stt.Emit(speechFinal("first question"))

	waitFor(t, 2*time.Second, func() bool { return f.orch.State() != session.StateListening })
	f.stt.Emit(speechFinal("second question"))

	waitFor(t, 2*time.Second, func() bool {
		history := f.sess.History()
		return len(history) == 2
	})

	history := f.sess.History()
	if history[0].Content != "second question" {
		t.Errorf("expected second utterance in history, got %+v", history)
	}
	if history[1].Content != "Second answer." {
		t.Errorf("expected second answer, got %+v", history)
	}
}

func TestOrchestratorSuppressesEmptyFinals(t *testing.T) {
	llm := inference.NewMock()
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })

	f.stt.Emit(stt.Event{Text: "", IsFinal: true, SpeechFinal: true})
	f.stt.Emit(stt.Event{Text: "   ", IsFinal: true, SpeechFinal: true})

	time.Sleep(50 * time.Millisecond)
	if got := llm.CallCount("Stream"); got != 0 {
		t.Errorf("empty finals triggered %d generations", got)
	}
	if f.orch.State() != session.StateListening {
		t.Errorf("state left listening: %s", f.orch.State())
	}
}

func TestOrchestratorGenerationRetry(t *testing.T) {
	llm := inference.NewMock()
	var attempts atomic.Int32
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("model overloaded")
		}
		return inference.NewScriptedStream(ctx, []string{"Recovered", " fine."}, 0), nil
	}
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
	f.stt.Emit(speechFinal("hello there"))

	waitFor(t, 2*time.Second, func() bool {
		return len(f.sess.History()) == 2
	})

	if history := f.sess.History(); history[1].Content != "Recovered fine." {
		t.Errorf("unexpected reply after retry: %+v", history)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 generation attempts, got %d", got)
	}
	if snap := f.rec.snapshot(); len(snap.errors) != 0 {
		t.Errorf("recovered turn reported errors: %v", snap.errors)
	}
}

func TestOrchestratorGenerationFailure(t *testing.T) {
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		return nil, errors.New("model overloaded")
	}
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
	f.stt.Emit(speechFinal("hello there"))

	waitFor(t, 2*time.Second, func() bool {
		snap := f.rec.snapshot()
		return len(snap.errors) > 0 && snap.audioEnds >= 1
	})

	snap := f.rec.snapshot()
	found := false
	for _, r := range snap.responses {
		if strings.Contains(r, "Sorry") {
			found = true
		}
	}
	if !found {
		t.Errorf("no spoken apology in %v", snap.responses)
	}
	if history := f.sess.History(); len(history) != 0 {
		t.Errorf("failed turn polluted history: %+v", history)
	}
	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })
}

func TestOrchestratorSTTFailure(t *testing.T) {
	llm := inference.NewMock()
	f := newFixture(t, "", llm)

	waitFor(t, time.Second, func() bool { return f.orch.State() == session.StateListening })

	wantErr := errors.New("transcription connection lost")
	f.stt.Fail(wantErr)

	select {
	case err := <-f.runErr:
		if !errors.Is(err, wantErr) {
			t.Errorf("expected stt error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not exit on stt failure")
	}

	snap := f.rec.snapshot()
	if len(snap.errors) == 0 {
		t.Error("stt failure not reported")
	}
}

func TestOrchestratorIdleTimeout(t *testing.T) {
	llm := inference.NewMock()
	f := newFixture(t, "", llm, session.WithIdleTimeout(80*time.Millisecond))

	select {
	case err := <-f.runErr:
		if err != nil {
			t.Errorf("expected clean idle shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("idle timeout did not fire")
	}
}

func TestOrchestratorVoiceSwapClosesOldProvider(t *testing.T) {
	first := tts.NewEchoMock()
	second := tts.NewEchoMock()

	profile := &customer.Profile{ID: "acme", CompanyName: "Acme Corp"}
	sess := session.NewSession(profile, 20)
	rec := &recorder{}
	orch := session.NewOrchestrator(sess, stt.NewMock(), prompt.NewAssembler(nil), inference.NewMock(), first, rec.sink())

	orch.SetSynthesizer(second)
	if got := first.CallCount("Close"); got != 1 {
		t.Errorf("replaced provider Close calls = %d, want 1", got)
	}
	if got := second.CallCount("Close"); got != 0 {
		t.Errorf("active provider closed early, Close calls = %d", got)
	}

	// Swapping in the provider already active must not close it.
	orch.SetSynthesizer(second)
	if got := second.CallCount("Close"); got != 0 {
		t.Errorf("self-swap closed the active provider, Close calls = %d", got)
	}

	if err := orch.CloseSynthesizer(); err != nil {
		t.Fatalf("CloseSynthesizer: %v", err)
	}
	if got := second.CallCount("Close"); got != 1 {
		t.Errorf("teardown Close calls = %d, want 1", got)
	}
	if got := first.CallCount("Close"); got != 1 {
		t.Errorf("teardown re-closed the replaced provider, Close calls = %d", got)
	}
}

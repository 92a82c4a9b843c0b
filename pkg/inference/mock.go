package inference

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// ChatFunc is called when Chat is invoked.
	// If nil, returns a canned reply.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// StreamFunc is called when Stream is invoked.
	// If nil, streams the canned reply word by word.
	StreamFunc func(ctx context.Context, req *ChatRequest) (Stream, error)

	// EmbedFunc is called when Embed is invoked.
	// If nil, returns deterministic bag-of-words vectors so that texts
	// sharing words land near each other under cosine similarity.
	EmbedFunc func(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error)

	// HealthFunc is called when Health is invoked. If nil, returns nil.
	HealthFunc func(ctx context.Context) error

	// Reply is the canned response text used by the default Chat/Stream.
	Reply string

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Last   string // last user message or first embed input
	Time   time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{Reply: "Happy to help with that."}
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.recordCall("Chat", lastUser(req))
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &ChatResponse{
		Message:      NewAssistantMessage(m.Reply),
		FinishReason: "stop",
		Model:        "mock",
	}, nil
}

// Stream calls StreamFunc and records the call.
func (m *Mock) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	m.recordCall("Stream", lastUser(req))
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return NewScriptedStream(ctx, wordDeltas(m.Reply), 0), nil
}

// Embed calls EmbedFunc and records the call.
func (m *Mock) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	first := ""
	if len(req.Input) > 0 {
		first = req.Input[0]
	}
	m.recordCall("Embed", first)

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, req)
	}

	embeddings := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = BagOfWordsVector(text)
	}
	return &EmbedResponse{Embeddings: embeddings}, nil
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "")
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, last string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Last:   last,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose methods always return the given error.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return nil, err
		},
		StreamFunc: func(ctx context.Context, req *ChatRequest) (Stream, error) {
			return nil, err
		},
		EmbedFunc: func(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

func lastUser(req *ChatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

func wordDeltas(text string) []string {
	words := strings.Fields(text)
	deltas := make([]string, len(words))
	for i, w := range words {
		if i == 0 {
			deltas[i] = w
		} else {
			deltas[i] = " " + w
		}
	}
	return deltas
}

// ScriptedStream is a Stream that replays a fixed sequence of deltas.
// An optional per-chunk interval simulates generation pacing; cancelling
// the context ends the stream early with its error.
type ScriptedStream struct {
	ctx      context.Context
	deltas   []string
	interval time.Duration

	mu     sync.Mutex
	pos    int
	closed bool
}

// NewScriptedStream creates a stream that emits the given deltas in order.
func NewScriptedStream(ctx context.Context, deltas []string, interval time.Duration) *ScriptedStream {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ScriptedStream{ctx: ctx, deltas: deltas, interval: interval}
}

// Recv returns the next scripted chunk.
func (s *ScriptedStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	pos := s.pos
	s.pos++
	s.mu.Unlock()

	if s.interval > 0 {
		select {
		case <-time.After(s.interval):
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	} else if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	if pos >= len(s.deltas) {
		return &StreamChunk{Done: true, FinishReason: "stop"}, nil
	}
	return &StreamChunk{Delta: s.deltas[pos]}, nil
}

// Close marks the stream closed.
func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// BagOfWordsVector maps text onto a fixed-dimension unit vector by hashing
// lowercased words. Deterministic, for tests only: texts with overlapping
// vocabulary score higher cosine similarity.
func BagOfWordsVector(text string) []float32 {
	const dim = 64
	v := make([]float32, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%dim]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// Verify Mock implements Provider at compile time.
var (
	_ Provider = (*Mock)(nil)
	_ Stream   = (*ScriptedStream)(nil)
)

package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	deepgramBaseURL   = "wss://api.deepgram.com/v1/listen"
	keepaliveInterval = 5 * time.Second
)

// Deepgram implements Provider using the Deepgram live transcription
// WebSocket API.
type Deepgram struct {
	config *Config
	logger *slog.Logger

	// connMu guards the conn pointer and serializes writes; gorilla
	// allows only one concurrent writer.
	conn   *websocket.Conn
	connMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	events chan Event

	errMu sync.Mutex
	err   error
}

// NewDeepgram creates a new Deepgram streaming STT provider.
func NewDeepgram(opts ...Option) (*Deepgram, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Deepgram{
		config: cfg,
		logger: cfg.Logger.With("component", "stt.deepgram"),
		events: make(chan Event, 64),
	}, nil
}

// Start establishes the WebSocket connection and begins reading events.
func (d *Deepgram) Start(ctx context.Context) error {
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.dial(); err != nil {
		return err
	}

	go d.readLoop()
	go d.keepaliveLoop()

	return nil
}

// SendAudio streams PCM16 audio to Deepgram.
func (d *Deepgram) SendAudio(pcm16 []byte) error {
	return d.write(websocket.BinaryMessage, pcm16)
}

// write sends one frame while holding the connection lock.
func (d *Deepgram) write(msgType int, data []byte) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn == nil {
		return ErrNotConnected
	}
	return d.conn.WriteMessage(msgType, data)
}

// writeControl sends one of Deepgram's JSON control messages.
func (d *Deepgram) writeControl(msgType string) error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	if d.conn == nil {
		return ErrNotConnected
	}
	return d.conn.WriteJSON(map[string]string{"type": msgType})
}

// Events returns the transcript event channel.
func (d *Deepgram) Events() <-chan Event {
	return d.events
}

// Err returns the terminal error after the event channel closes.
func (d *Deepgram) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

// Close tears down the connection.
func (d *Deepgram) Close() error {
	if d.cancel != nil {
		d.cancel()
	}

	// Deepgram flushes pending results on CloseStream
	_ = d.writeControl("CloseStream")

	d.connMu.Lock()
	defer d.connMu.Unlock()
	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

// dial establishes the WebSocket connection.
func (d *Deepgram) dial() error {
	d.connMu.Lock()
	defer d.connMu.Unlock()

	base := d.config.BaseURL
	if base == "" {
		base = deepgramBaseURL
	}

	q := url.Values{}
	q.Set("model", d.config.Model)
	q.Set("language", d.config.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))
	q.Set("channels", strconv.Itoa(d.config.Channels))
	q.Set("interim_results", strconv.FormatBool(d.config.Interim))
	q.Set("endpointing", strconv.FormatInt(d.config.Endpointing.Milliseconds(), 10))
	q.Set("smart_format", "true")

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(d.ctx, base+"?"+q.Encode(), headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stt: deepgram dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("stt: deepgram dial failed: %w", err)
	}

	d.conn = conn
	return nil
}

// readLoop reads transcript messages until the connection ends.
// On a read error it attempts a bounded number of reconnects before
// surfacing the error and closing the event channel.
func (d *Deepgram) readLoop() {
	defer close(d.events)

	reconnects := 0
	for {
		d.connMu.Lock()
		conn := d.conn
		d.connMu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if d.ctx.Err() != nil {
				return // shut down by Close
			}
			if reconnects < d.config.MaxReconnects {
				reconnects++
				d.logger.Warn("connection lost, reconnecting",
					"attempt", reconnects,
					"error", err,
				)
				if dialErr := d.dial(); dialErr == nil {
					continue
				}
			}
			d.setErr(fmt.Errorf("stt: stream read: %w", err))
			return
		}

		ev, ok := d.parseResult(data)
		if !ok {
			continue
		}

		select {
		case d.events <- ev:
		case <-d.ctx.Done():
			return
		}
	}
}

// keepaliveLoop pings Deepgram so the connection survives silence.
func (d *Deepgram) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = d.writeControl("KeepAlive")
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Deepgram) setErr(err error) {
	d.errMu.Lock()
	d.err = err
	d.errMu.Unlock()
}

// deepgramResult is the live transcription message format.
type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	// SpeechFinal marks the endpointer's end-of-speech decision.
	SpeechFinal bool `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResult converts a Deepgram message into an Event.
// Non-transcript messages (metadata, keepalive acks) are skipped.
func (d *Deepgram) parseResult(data []byte) (Event, bool) {
	var res deepgramResult
	if err := json.Unmarshal(data, &res); err != nil {
		return Event{}, false
	}
	if res.Type != "Results" || len(res.Channel.Alternatives) == 0 {
		return Event{}, false
	}

	alt := res.Channel.Alternatives[0]
	return Event{
		Text:        alt.Transcript,
		IsFinal:     res.IsFinal,
		SpeechFinal: res.SpeechFinal,
		Confidence:  alt.Confidence,
		Timestamp:   time.Now(),
	}, true
}

// Verify Deepgram implements Provider at compile time.
var _ Provider = (*Deepgram)(nil)

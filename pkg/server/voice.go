package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/parleyvoice/go-parley/pkg/protocol"
	"github.com/parleyvoice/go-parley/pkg/session"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames. Audio arrives in small PCM
	// chunks; anything near this limit is a misbehaving client.
	maxMessageSize = 512 * 1024

	// sendBuffer is the outbound queue depth per connection.
	sendBuffer = 256
)

// voiceConn owns all writes to one WebSocket connection. The
// orchestrator emits events from several goroutines; a single write
// pump serializes them.
type voiceConn struct {
	conn *websocket.Conn
	send chan *protocol.Message

	closeOnce sync.Once
	done      chan struct{}
}

func newVoiceConn(conn *websocket.Conn) *voiceConn {
	return &voiceConn{
		conn: conn,
		send: make(chan *protocol.Message, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues a message for delivery. A full buffer means the
// client stopped draining; the connection is closed rather than
// delivering audio with gaps in it.
func (vc *voiceConn) enqueue(msg *protocol.Message) bool {
	select {
	case vc.send <- msg:
		return true
	case <-vc.done:
		return false
	default:
		vc.close()
		return false
	}
}

// close stops the write pump and closes the connection.
func (vc *voiceConn) close() {
	vc.closeOnce.Do(func() {
		close(vc.done)
		if vc.conn != nil {
			vc.conn.Close()
		}
	})
}

// writePump serializes all writes, interleaving keep-alive pings.
func (vc *voiceConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		vc.close()
	}()

	for {
		select {
		case <-vc.done:
			return

		case msg := <-vc.send:
			data, err := msg.Bytes()
			if err != nil {
				continue
			}
			vc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := vc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			vc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := vc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleVoiceWS runs one voice session over a WebSocket. Binary frames
// carry caller PCM16 audio; text frames carry control messages. All
// pipeline events flow back as JSON text frames.
func (s *Server) handleVoiceWS(c *websocket.Conn) {
	vc := newVoiceConn(c)
	go vc.writePump()
	defer vc.close()

	customerID, ok := s.tokens.Redeem(c.Query("token"))
	if !ok {
		s.sendError(vc, "auth", "invalid or expired session token")
		return
	}

	profile, err := s.deps.Customers.Get(customerID)
	if err != nil {
		s.sendError(vc, "auth", "unknown customer")
		return
	}

	sttProvider, err := s.deps.NewSTT()
	if err != nil {
		s.logger.Error("stt provider unavailable", "error", err)
		s.sendError(vc, "transcription", "transcription unavailable")
		return
	}

	ttsProvider, err := s.deps.NewTTS(profile.VoiceID)
	if err != nil {
		s.logger.Error("tts provider unavailable", "error", err)
		s.sendError(vc, "synthesis", "synthesis unavailable")
		return
	}

	sess := session.NewSession(profile, s.deps.Config.HistoryWindow)
	logger := s.logger.With("session_id", sess.ID, "customer_id", customerID)
	logger.Info("voice session opened", "company", profile.CompanyName)

	var audioSeq atomic.Int64
	sink := &session.Sink{
		OnStatus: func(state session.State) {
			s.sendJSON(vc, protocol.TypeStatus, protocol.StatusData{State: state.String()})
		},
		OnTranscript: func(text string, isFinal bool) {
			s.sendJSON(vc, protocol.TypeTranscript, protocol.TranscriptData{Text: text, IsFinal: isFinal})
		},
		OnResponse: func(seq int, text string) {
			s.sendJSON(vc, protocol.TypeResponse, protocol.ResponseData{Text: text, Segment: seq})
		},
		OnAudio: func(audio session.SegmentAudio) {
			s.sendJSON(vc, protocol.TypeAudio, protocol.AudioData{
				Data:       base64.StdEncoding.EncodeToString(audio.Audio),
				Sequence:   int(audioSeq.Add(1)),
				Segment:    audio.Segment.Seq,
				SampleRate: audio.SampleRate,
			})
		},
		OnAudioEnd: func() {
			s.sendJSON(vc, protocol.TypeAudioEnd, nil)
		},
		OnError: func(stage string, err error) {
			s.sendError(vc, stage, err.Error())
		},
	}

	cfg := s.deps.Config
	orch := session.NewOrchestrator(sess, sttProvider, s.deps.Assembler, s.deps.LLM, ttsProvider, sink,
		session.WithHistoryWindow(cfg.HistoryWindow),
		session.WithMinPartialRunes(cfg.MinPartialRunes),
		session.WithIdleTimeout(cfg.IdleTimeout),
		session.WithLogger(logger),
	)
	// Voice swaps replace the provider, so close whichever one the
	// orchestrator holds at teardown.
	defer orch.CloseSynthesizer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("session ended with error", "error", err)
		}
	}()

	// When the run ends first (idle timeout, transcription loss), close
	// the connection so the read loop below unblocks.
	go func() {
		<-runDone
		vc.close()
	}()

	c.SetReadLimit(maxMessageSize)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := orch.SendAudio(data); err != nil {
				logger.Debug("dropping audio frame", "error", err)
			}
		case websocket.TextMessage:
			s.handleControl(vc, orch, data, logger)
		}
	}

	cancel()
	<-runDone
	logger.Info("voice session closed")
}

// handleControl processes a client text frame: pings and mid-session
// configuration updates.
func (s *Server) handleControl(vc *voiceConn, orch *session.Orchestrator, data []byte, logger *slog.Logger) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		logger.Warn("unparseable control message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		var ping protocol.PingData
		if err := msg.ParseData(&ping); err != nil {
			return
		}
		now := time.Now().UnixMilli()
		s.sendJSON(vc, protocol.TypePong, protocol.PongData{
			ID:        ping.ID,
			PingTS:    ping.Timestamp,
			PongTS:    now,
			LatencyMs: now - ping.Timestamp,
		})

	case protocol.TypeConfig:
		var cfg protocol.ConfigData
		if err := msg.ParseData(&cfg); err != nil || cfg.Voice == "" {
			return
		}
		provider, err := s.deps.NewTTS(cfg.Voice)
		if err != nil {
			logger.Warn("voice change failed", "voice", cfg.Voice, "error", err)
			return
		}
		orch.SetSynthesizer(provider)
	}
}

// sendJSON wraps a payload in the protocol envelope and queues it.
func (s *Server) sendJSON(vc *voiceConn, msgType protocol.MessageType, data interface{}) {
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		s.logger.Error("marshal message failed", "type", msgType, "error", err)
		return
	}
	if !vc.enqueue(msg) {
		s.logger.Warn("outbound queue overflow, connection closing", "type", msgType)
	}
}

// sendError queues an error event.
func (s *Server) sendError(vc *voiceConn, stage, message string) {
	s.sendJSON(vc, protocol.TypeError, protocol.ErrorData{Stage: stage, Message: message})
}

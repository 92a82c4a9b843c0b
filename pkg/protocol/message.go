// Package protocol defines the WebSocket message types for the voice session
// event stream. This package is shared between the server and client SDKs.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Client messages
	TypeTranscript MessageType = "transcript" // Live caption of user speech
	TypeStatus     MessageType = "status"     // Orchestrator state transition
	TypeResponse   MessageType = "response"   // Assistant text segment
	TypeAudio      MessageType = "audio"      // Synthesized audio payload
	TypeAudioEnd   MessageType = "audio_end"  // All audio for the turn delivered
	TypeError      MessageType = "error"      // Recoverable session error

	// Client → Server messages (binary frames carry raw PCM; text frames
	// carry config updates)
	TypeConfig MessageType = "config" // Voice/config update

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// TranscriptData carries a partial or final user transcript for live captions.
type TranscriptData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// StatusData reports an orchestrator state transition.
type StatusData struct {
	State string `json:"state"` // "listening", "thinking", "speaking"
}

// ResponseData carries assistant text once a reply segment completes.
type ResponseData struct {
	Text    string `json:"text"`
	Segment int    `json:"segment,omitempty"`
}

// AudioData carries synthesized audio for playback. Sequence numbers are
// strictly increasing per session; clients play chunks in sequence order.
type AudioData struct {
	Data       string `json:"data"` // base64 encoded
	Sequence   int    `json:"sequence"`
	Segment    int    `json:"segment"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// ErrorData reports a recoverable error scoped to the current turn.
type ErrorData struct {
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"` // "transcription", "retrieval", "generation", "synthesis"
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// ConfigData carries a mid-session configuration update.
type ConfigData struct {
	Voice string `json:"voice,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

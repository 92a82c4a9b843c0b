// Package stt provides a unified interface for streaming speech-to-text
// providers.
//
// A provider accepts raw PCM16 audio and emits transcript events on a
// channel. Events carry partial (interim) and final transcripts plus the
// provider's endpoint decision, which downstream turn detection consumes.
//
// Example usage:
//
//	provider, _ := stt.NewDeepgram(
//	    stt.WithAPIKey(os.Getenv("DEEPGRAM_API_KEY")),
//	    stt.WithSampleRate(16000),
//	)
//	if err := provider.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	go func() {
//	    for ev := range provider.Events() {
//	        fmt.Println(ev.Text, ev.IsFinal)
//	    }
//	}()
//
//	for frame := range microphone {
//	    provider.SendAudio(frame)
//	}
package stt

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrNotConnected is returned when sending audio before Start.
	ErrNotConnected = errors.New("stt: not connected")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("stt: already started")
)

// Event is a single transcription result from the provider.
type Event struct {
	// Text is the transcript for the current utterance window.
	Text string

	// IsFinal indicates the provider will not revise this text.
	IsFinal bool

	// SpeechFinal indicates the provider's endpointer detected the end of
	// speech (trailing silence). Only meaningful when IsFinal is true.
	SpeechFinal bool

	// Confidence is the provider's confidence in the transcript (0.0-1.0).
	Confidence float64

	// Timestamp is when the event was received.
	Timestamp time.Time
}

// Provider is the interface for streaming transcription backends.
type Provider interface {
	// Start establishes the streaming connection.
	Start(ctx context.Context) error

	// SendAudio streams PCM16 mono audio to the provider.
	// Must not block on downstream processing.
	SendAudio(pcm16 []byte) error

	// Events returns the transcript event channel. The channel is closed
	// when the connection ends; check Err afterwards.
	Events() <-chan Event

	// Err returns the terminal error after Events is closed, if any.
	Err() error

	// Close tears down the connection and releases resources.
	Close() error
}

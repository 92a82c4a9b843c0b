package server

import (
	"testing"

	"github.com/parleyvoice/go-parley/pkg/protocol"
)

func TestVoiceConnOverflowCloses(t *testing.T) {
	vc := &voiceConn{
		send: make(chan *protocol.Message, 2),
		done: make(chan struct{}),
	}
	msg := &protocol.Message{Type: protocol.TypeAudio}

	if !vc.enqueue(msg) || !vc.enqueue(msg) {
		t.Fatal("enqueue rejected with buffer space left")
	}

	// Third message overflows the buffer. A stalled client must lose
	// the connection instead of hearing audio with segments missing.
	if vc.enqueue(msg) {
		t.Error("overflow enqueue accepted")
	}
	select {
	case <-vc.done:
	default:
		t.Error("overflow did not close the connection")
	}

	// Enqueue after close stays non-blocking and keeps rejecting.
	if vc.enqueue(msg) {
		t.Error("enqueue accepted after close")
	}
}

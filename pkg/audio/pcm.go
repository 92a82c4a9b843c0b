// Package audio provides helpers for the raw PCM16 audio the voice
// pipeline carries: caller audio arriving over the WebSocket and
// synthesized speech going back out.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is the width of one PCM16 sample.
const BytesPerSample = 2

// Samples returns the number of complete samples in a PCM16 buffer.
func Samples(pcm16 []byte) int {
	return len(pcm16) / BytesPerSample
}

// Duration returns the playback time of a PCM16 buffer at the given
// sample rate. Returns zero for a non-positive rate.
func Duration(pcm16 []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(Samples(pcm16)) * time.Second / time.Duration(sampleRate)
}

// RMS returns the root-mean-square level of a PCM16 buffer, normalized
// to [0, 1]. Trailing odd bytes are ignored.
func RMS(pcm16 []byte) float64 {
	n := Samples(pcm16)
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm16[i*BytesPerSample:]))
		f := float64(s) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

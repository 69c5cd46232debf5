package audio

import (
	"fmt"
	"time"
)

// Frame is one fixed-length capture of raw PCM audio: signed 16-bit samples,
// mono. Frames are immutable once decoded and discarded after feature
// extraction and relay.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// DecodeFrame parses a binary wire payload into a Frame. The payload carries
// raw little-endian 16-bit PCM with no header. Errors are fatal to the frame
// only; the caller drops it and resumes on the next one.
func DecodeFrame(payload []byte, sampleRate int) (Frame, error) {
	if len(payload) == 0 {
		return Frame{}, fmt.Errorf("empty audio payload")
	}
	if len(payload)%2 != 0 {
		return Frame{}, fmt.Errorf("audio payload length must be even (16-bit samples), got %d", len(payload))
	}
	if sampleRate <= 0 {
		return Frame{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(payload[i*2]) | int16(payload[i*2+1])<<8
	}

	return Frame{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration returns the wall time the frame covers at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

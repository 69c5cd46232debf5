package audio

import (
	"sync"
)

// ChunkBuffer accumulates the PCM samples of one active recording chunk,
// bounded at a fixed capacity so a single client can never grow its audio
// memory past the active chunk. When full, the oldest samples are dropped so
// the tail of the utterance is what reaches the ASR engine.
type ChunkBuffer struct {
	samples  []int16
	capacity int
	dropped  int
	mu       sync.Mutex
}

// NewChunkBuffer creates a buffer capped at capacity samples.
func NewChunkBuffer(capacity int) *ChunkBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChunkBuffer{
		samples:  make([]int16, 0, capacity),
		capacity: capacity,
	}
}

// Append adds samples to the chunk, evicting the oldest ones on overflow.
// Returns the number of samples dropped by this call.
func (b *ChunkBuffer) Append(samples []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) >= b.capacity {
		// the new data alone overflows: keep only its tail
		droppedNow := len(b.samples) + len(samples) - b.capacity
		b.samples = b.samples[:0]
		b.samples = append(b.samples, samples[len(samples)-b.capacity:]...)
		b.dropped += droppedNow
		return droppedNow
	}

	overflow := len(b.samples) + len(samples) - b.capacity
	if overflow > 0 {
		b.samples = b.samples[overflow:]
		b.dropped += overflow
	}
	b.samples = append(b.samples, samples...)
	if overflow > 0 {
		return overflow
	}
	return 0
}

// Drain returns a copy of the accumulated samples and empties the buffer.
func (b *ChunkBuffer) Drain() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]int16, len(b.samples))
	copy(out, b.samples)
	b.samples = b.samples[:0]
	return out
}

// Len returns the number of samples currently buffered.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Dropped returns the total samples dropped to overflow since creation.
func (b *ChunkBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Reset empties the buffer without returning its contents.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}

package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/audio"
)

// Sender ships one encoded chunk to the transcription engine.
type Sender interface {
	SendChunk(wav []byte, generation int64) error
}

// Relay accumulates the PCM of the active recording chunk and, when the
// chunk stops, encodes it as WAV and sends it upstream without blocking the
// audio path. Send failures are reported through the error callback; the
// frame pipeline never waits on the engine.
type Relay struct {
	sender     Sender
	sampleRate int
	log        zerolog.Logger
	onError    func(error)

	mu         sync.Mutex
	buf        *audio.ChunkBuffer
	recording  bool
	generation int64
	closed     bool

	wg sync.WaitGroup
}

// New creates a relay capped at maxChunkSamples per chunk. onError may be
// nil.
func New(sender Sender, sampleRate, maxChunkSamples int, log zerolog.Logger, onError func(error)) *Relay {
	return &Relay{
		sender:     sender,
		sampleRate: sampleRate,
		log:        log,
		onError:    onError,
		buf:        audio.NewChunkBuffer(maxChunkSamples),
	}
}

// StartChunk begins buffering a new chunk under the given session
// generation. Any samples left from an aborted chunk are discarded.
func (r *Relay) StartChunk(generation int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf.Reset()
	r.recording = true
	r.generation = generation
}

// Append adds frame samples to the active chunk. Returns how many samples
// were dropped to the chunk cap; zero when idle.
func (r *Relay) Append(samples []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.closed {
		return 0
	}
	dropped := r.buf.Append(samples)
	if dropped > 0 {
		r.log.Warn().Int("dropped_samples", dropped).Msg("chunk buffer overflow, oldest audio dropped")
	}
	return dropped
}

// StopChunk ends the active chunk and ships it upstream on a background
// goroutine. Returns the number of samples sent; zero means the chunk was
// empty and nothing was sent.
func (r *Relay) StopChunk() int {
	r.mu.Lock()
	if !r.recording || r.closed {
		r.mu.Unlock()
		return 0
	}
	r.recording = false
	samples := r.buf.Drain()
	generation := r.generation
	r.mu.Unlock()

	if len(samples) == 0 {
		return 0
	}

	wav, err := audio.EncodeWAV(samples, r.sampleRate)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode chunk")
		r.reportError(err)
		return 0
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.sender.SendChunk(wav, generation); err != nil {
			r.log.Error().Err(err).Int64("generation", generation).Msg("failed to relay chunk")
			r.reportError(err)
		}
	}()

	return len(samples)
}

func (r *Relay) reportError(err error) {
	if r.onError != nil {
		r.onError(err)
	}
}

// Recording reports whether a chunk is currently being buffered.
func (r *Relay) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close discards any active chunk and waits for in-flight sends to finish.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.recording = false
	r.buf.Reset()
	r.mu.Unlock()

	r.wg.Wait()
}

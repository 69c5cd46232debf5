package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/audio"
)

type fakeSender struct {
	mu     sync.Mutex
	chunks []sentChunk
	err    error
}

type sentChunk struct {
	wav        []byte
	generation int64
}

func (s *fakeSender) SendChunk(wav []byte, generation int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, sentChunk{wav: wav, generation: generation})
	return nil
}

func (s *fakeSender) sent() []sentChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func TestRelay_ChunkLifecycle(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, 16000, 960000, zerolog.Nop(), nil)

	r.StartChunk(2)
	if !r.Recording() {
		t.Fatal("expected recording after StartChunk")
	}

	r.Append([]int16{1, 2, 3})
	r.Append([]int16{4, 5})

	if sent := r.StopChunk(); sent != 5 {
		t.Errorf("expected 5 samples shipped, got %d", sent)
	}
	r.Close()

	chunks := sender.sent()
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk sent, got %d", len(chunks))
	}
	if chunks[0].generation != 2 {
		t.Errorf("expected generation 2, got %d", chunks[0].generation)
	}

	samples, rate, err := audio.DecodeWAV(chunks[0].wav)
	if err != nil {
		t.Fatalf("sent chunk is not a WAV container: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	want := []int16{1, 2, 3, 4, 5}
	for i, s := range want {
		if samples[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, samples[i])
		}
	}
}

func TestRelay_EmptyChunkNotSent(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, 16000, 960000, zerolog.Nop(), nil)

	r.StartChunk(1)
	if sent := r.StopChunk(); sent != 0 {
		t.Errorf("expected nothing shipped for empty chunk, got %d", sent)
	}
	r.Close()

	if len(sender.sent()) != 0 {
		t.Error("expected no upstream send for an empty chunk")
	}
}

func TestRelay_AppendWhileIdleIsIgnored(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, 16000, 960000, zerolog.Nop(), nil)

	r.Append([]int16{1, 2, 3})
	r.StartChunk(1)
	r.Append([]int16{9})
	r.StopChunk()
	r.Close()

	chunks := sender.sent()
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	samples, _, err := audio.DecodeWAV(chunks[0].wav)
	if err != nil {
		t.Fatalf("DecodeWAV() failed: %v", err)
	}
	if len(samples) != 1 || samples[0] != 9 {
		t.Errorf("expected only the in-chunk sample, got %v", samples)
	}
}

func TestRelay_SendFailureReported(t *testing.T) {
	sender := &fakeSender{err: errors.New("engine down")}

	var mu sync.Mutex
	var reported []error
	r := New(sender, 16000, 960000, zerolog.Nop(), func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})

	r.StartChunk(1)
	r.Append([]int16{1, 2, 3})
	r.StopChunk()
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 {
		t.Fatalf("expected one reported error, got %d", len(reported))
	}
}

func TestRelay_StartDiscardsAbortedChunk(t *testing.T) {
	sender := &fakeSender{}
	r := New(sender, 16000, 960000, zerolog.Nop(), nil)

	r.StartChunk(1)
	r.Append([]int16{1, 2, 3})
	// a new chunk begins without the previous one being stopped
	r.StartChunk(2)
	r.Append([]int16{7})
	r.StopChunk()
	r.Close()

	chunks := sender.sent()
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	samples, _, _ := audio.DecodeWAV(chunks[0].wav)
	if len(samples) != 1 || samples[0] != 7 {
		t.Errorf("expected the aborted chunk discarded, got %v", samples)
	}
}

func TestRelay_CloseWaitsForInFlightSend(t *testing.T) {
	done := make(chan struct{})
	slow := &slowSender{release: done}
	r := New(slow, 16000, 960000, zerolog.Nop(), nil)

	r.StartChunk(1)
	r.Append([]int16{1})
	r.StopChunk()

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close() returned before the in-flight send finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(done)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close() did not return after the send finished")
	}
}

type slowSender struct {
	release chan struct{}
}

func (s *slowSender) SendChunk([]byte, int64) error {
	<-s.release
	return nil
}

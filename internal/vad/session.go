package vad

import (
	"sync/atomic"
	"time"
)

// EventKind identifies a session transition produced by one frame update.
type EventKind int

const (
	SessionOpened EventKind = iota
	ChunkStarted
	ChunkStopped
	SessionEnded
)

// String returns the event name for logging.
func (k EventKind) String() string {
	switch k {
	case SessionOpened:
		return "session_opened"
	case ChunkStarted:
		return "chunk_started"
	case ChunkStopped:
		return "chunk_stopped"
	case SessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// Event is one session transition. Generation tags every event so
// transcription results returned after the session moved on can be told
// apart from current ones.
type Event struct {
	Kind       EventKind
	Generation int64
	At         time.Time
}

// SessionConfig sets the two silence horizons and the minimum recording
// length. MaxSilence must be shorter than SessionEndSilence so a chunk always
// stops before its session ends.
type SessionConfig struct {
	// MinSpeechDuration is the shortest recording worth stopping on silence;
	// shorter recordings keep running until the session-end horizon flushes
	// them.
	MinSpeechDuration time.Duration
	// MaxSilence stops the active chunk and ships it for transcription.
	MaxSilence time.Duration
	// SessionEndSilence closes the whole speech session.
	SessionEndSilence time.Duration
}

// Session tracks one client's speech activity across chunks. A session opens
// on the first confirmed speech, may span several recorded chunks separated
// by short pauses, and ends after a longer silence. Update runs on the
// connection's read goroutine; Generation is safe to read from the
// transcription-results goroutine.
type Session struct {
	cfg SessionConfig

	active     bool
	recording  bool
	generation atomic.Int64

	recordingStart time.Time
	silenceStart   time.Time
}

// NewSession creates an idle session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.MinSpeechDuration <= 0 {
		cfg.MinSpeechDuration = 500 * time.Millisecond
	}
	if cfg.MaxSilence <= 0 {
		cfg.MaxSilence = time.Second
	}
	if cfg.SessionEndSilence <= cfg.MaxSilence {
		cfg.SessionEndSilence = cfg.MaxSilence + 500*time.Millisecond
	}
	return &Session{cfg: cfg}
}

// Update advances the session by one classified frame and returns the
// transitions it caused, in the order they logically occur.
func (s *Session) Update(class FrameClass, now time.Time) []Event {
	switch class {
	case FrameSpeech:
		return s.onSpeech(now)
	case FrameIndeterminate:
		// not confirmed speech, but not silence either: hold the silence clock
		s.silenceStart = time.Time{}
		return nil
	default:
		return s.onSilence(now)
	}
}

func (s *Session) onSpeech(now time.Time) []Event {
	s.silenceStart = time.Time{}

	var events []Event
	if !s.active {
		s.active = true
		gen := s.generation.Add(1)
		events = append(events, Event{Kind: SessionOpened, Generation: gen, At: now})
	}
	if !s.recording {
		s.recording = true
		s.recordingStart = now
		events = append(events, Event{Kind: ChunkStarted, Generation: s.generation.Load(), At: now})
	}
	return events
}

func (s *Session) onSilence(now time.Time) []Event {
	if !s.active {
		return nil
	}
	if s.silenceStart.IsZero() {
		s.silenceStart = now
		return nil
	}

	silence := now.Sub(s.silenceStart)
	gen := s.generation.Load()
	var events []Event

	if s.recording && silence >= s.cfg.MaxSilence &&
		now.Sub(s.recordingStart) >= s.cfg.MinSpeechDuration {
		s.recording = false
		events = append(events, Event{Kind: ChunkStopped, Generation: gen, At: now})
	}

	if silence >= s.cfg.SessionEndSilence {
		if s.recording {
			// flush a short recording the chunk horizon never stopped
			s.recording = false
			events = append(events, Event{Kind: ChunkStopped, Generation: gen, At: now})
		}
		s.active = false
		s.silenceStart = time.Time{}
		events = append(events, Event{Kind: SessionEnded, Generation: gen, At: now})
	}
	return events
}

// ForceStart opens the session and starts a chunk on explicit client request,
// bypassing speech confirmation.
func (s *Session) ForceStart(now time.Time) []Event {
	return s.onSpeech(now)
}

// ForceStopChunk stops the active chunk immediately, ignoring the silence and
// minimum-duration horizons. The session stays active.
func (s *Session) ForceStopChunk(now time.Time) []Event {
	if !s.recording {
		return nil
	}
	s.recording = false
	s.silenceStart = time.Time{}
	return []Event{{Kind: ChunkStopped, Generation: s.generation.Load(), At: now}}
}

// Active reports whether a speech session is open.
func (s *Session) Active() bool {
	return s.active
}

// Recording reports whether a chunk is currently being recorded.
func (s *Session) Recording() bool {
	return s.recording
}

// Generation returns the current session generation. Safe to call from other
// goroutines.
func (s *Session) Generation() int64 {
	return s.generation.Load()
}

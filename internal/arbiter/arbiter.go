package arbiter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Candidate is one transcription result submitted for arbitration.
type Candidate struct {
	Text       string
	Confidence float64
	IsFinal    bool
	Generation int64
	ReceivedAt time.Time
}

// Transcription is the winning candidate handed to the emit callback.
type Transcription struct {
	Text       string
	Confidence float64
	Score      float64
	ReceivedAt time.Time
}

// Config sets the arbitration behavior on top of the filter settings.
type Config struct {
	Filter FilterConfig
	// DebounceDelay is how long after the last accepted final candidate the
	// arbiter waits before emitting the winner. Each new candidate restarts
	// the clock.
	DebounceDelay time.Duration
}

// Arbiter collects competing final transcripts for the same stretch of
// speech and emits the single best one once the stream of candidates goes
// quiet. Partial results are filtered but never compete. Safe for concurrent
// use.
type Arbiter struct {
	cfg    Config
	filter *Filter
	emit   func(Transcription)
	log    zerolog.Logger

	mu          sync.Mutex
	candidates  []scored
	timer       *time.Timer
	lastEmitted string
	closed      bool
}

type scored struct {
	cand  Candidate
	score float64
}

// New creates an arbiter that calls emit with each winning transcription.
func New(cfg Config, log zerolog.Logger, emit func(Transcription)) *Arbiter {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 2 * time.Second
	}
	return &Arbiter{
		cfg:    cfg,
		filter: NewFilter(cfg.Filter),
		emit:   emit,
		log:    log,
	}
}

// Submit runs the candidate through the rejection battery and, for accepted
// finals, enters it into the current debounce round. The returned disposition
// says exactly what happened to it.
func (a *Arbiter) Submit(c Candidate) Disposition {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return RejectedStale
	}

	if Duplicate(c.Text, a.lastEmitted) {
		a.log.Debug().Str("text", c.Text).Msg("duplicate of last emitted transcription")
		return RejectedDuplicate
	}

	if disp := a.filter.Check(c.Text, c.Confidence); disp.Rejected() {
		a.log.Debug().
			Str("text", c.Text).
			Float64("confidence", c.Confidence).
			Str("disposition", string(disp)).
			Msg("transcription candidate rejected")
		return disp
	}

	if !c.IsFinal {
		return AcceptedPartial
	}

	a.candidates = append(a.candidates, scored{cand: c, score: Score(c.Text, c.Confidence)})

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.cfg.DebounceDelay, a.fire)

	return Accepted
}

// fire picks and emits the winner of the current round. Runs on the timer
// goroutine; the emit callback is invoked outside the lock.
func (a *Arbiter) fire() {
	a.mu.Lock()
	if a.closed || len(a.candidates) == 0 {
		a.mu.Unlock()
		return
	}

	best := a.candidates[0]
	for _, s := range a.candidates[1:] {
		if s.score > best.score ||
			(s.score == best.score && s.cand.ReceivedAt.After(best.cand.ReceivedAt)) {
			best = s
		}
	}

	count := len(a.candidates)
	a.candidates = nil
	a.timer = nil
	a.lastEmitted = best.cand.Text
	emit := a.emit
	a.mu.Unlock()

	a.log.Info().
		Str("text", best.cand.Text).
		Float64("score", best.score).
		Int("candidates", count).
		Msg("transcription winner emitted")

	if emit != nil {
		emit(Transcription{
			Text:       best.cand.Text,
			Confidence: best.cand.Confidence,
			Score:      best.score,
			ReceivedAt: best.cand.ReceivedAt,
		})
	}
}

// Pending returns how many candidates are waiting in the current round.
func (a *Arbiter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.candidates)
}

// Close cancels any pending round without emitting. Further submissions are
// rejected.
func (a *Arbiter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.candidates = nil
}

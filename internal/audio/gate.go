package audio

import "time"

// GateState is the noise gate's position in its envelope cycle.
type GateState int

const (
	GateClosed GateState = iota
	GateOpening
	GateOpen
	GateClosing
)

// String returns the state name for logging.
func (s GateState) String() string {
	switch s {
	case GateClosed:
		return "closed"
	case GateOpening:
		return "opening"
	case GateOpen:
		return "open"
	case GateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// noSignalEnvelope: below this envelope the gate reports no signal and the
// caller must treat the frame as silence regardless of raw metrics.
const noSignalEnvelope = 0.1

// NoiseGate is a four-state envelope follower smoothing the raw
// speech/silence decision. Fast attack captures brief speech onsets; slow
// release keeps mid-sentence pauses from re-closing the gate. Transitions run
// Closed→Opening→Open→Closing→Closed, with re-entry Closing→Opening and
// Opening→Closing when the input level crosses the threshold mid-ramp.
type NoiseGate struct {
	threshold float64
	attack    time.Duration
	release   time.Duration

	state    GateState
	envelope float64
}

// NewNoiseGate creates a gate with the given open threshold and ramp times.
func NewNoiseGate(threshold float64, attack, release time.Duration) *NoiseGate {
	if attack <= 0 {
		attack = 10 * time.Millisecond
	}
	if release <= 0 {
		release = 100 * time.Millisecond
	}
	return &NoiseGate{
		threshold: threshold,
		attack:    attack,
		release:   release,
		state:     GateClosed,
	}
}

// SetThreshold updates the open threshold (e.g. after noise-floor
// calibration).
func (g *NoiseGate) SetThreshold(threshold float64) {
	g.threshold = threshold
}

// Apply advances the gate by one frame and returns the gated metrics plus a
// signal-present flag. Metrics are scaled by the envelope; when the envelope
// is at or below 0.1 the flag is false and the frame must count as silence.
func (g *NoiseGate) Apply(m Metrics, elapsed time.Duration) (Metrics, bool) {
	exceeded := m.RMS > g.threshold

	switch g.state {
	case GateClosed:
		if exceeded {
			// the envelope starts ramping on the next frame, so one update
			// can never jump Closed→Open
			g.state = GateOpening
		}

	case GateOpening:
		if !exceeded {
			g.state = GateClosing
			break
		}
		g.envelope += float64(elapsed) / float64(g.attack)
		if g.envelope >= 1 {
			g.envelope = 1
			g.state = GateOpen
		}

	case GateOpen:
		g.envelope = 1
		if !exceeded {
			g.state = GateClosing
		}

	case GateClosing:
		if exceeded {
			g.state = GateOpening
			break
		}
		g.envelope -= float64(elapsed) / float64(g.release)
		if g.envelope <= 0 {
			g.envelope = 0
			g.state = GateClosed
		}
	}

	gated := m
	gated.RMS *= g.envelope
	gated.Energy *= g.envelope
	gated.Confidence *= g.envelope

	return gated, g.envelope > noSignalEnvelope
}

// State returns the current gate state.
func (g *NoiseGate) State() GateState {
	return g.state
}

// Envelope returns the current envelope value in [0, 1].
func (g *NoiseGate) Envelope() float64 {
	return g.envelope
}

// Reset closes the gate and zeroes the envelope.
func (g *NoiseGate) Reset() {
	g.state = GateClosed
	g.envelope = 0
}

package vad

import (
	"github.com/scribeai/voice-gateway/internal/audio"
)

// speechConfirmFrames is how many consecutive speech-positive frames it takes
// before the detector commits to a speech onset.
const speechConfirmFrames = 3

// totalChecks and requiredChecks implement the majority vote over the
// per-frame feature checks.
const (
	totalChecks    = 5
	requiredChecks = 3
)

// FrameClass is the detector's verdict for one frame as consumed by the
// session state machine. Frames that look like speech but have not yet been
// confirmed are neither speech nor silence.
type FrameClass int

const (
	FrameSilence FrameClass = iota
	FrameIndeterminate
	FrameSpeech
)

// String returns the class name for logging.
func (c FrameClass) String() string {
	switch c {
	case FrameSilence:
		return "silence"
	case FrameIndeterminate:
		return "indeterminate"
	case FrameSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

// Decision is the full per-frame detector output, carrying enough detail for
// the vad_result message sent back to the client.
type Decision struct {
	IsSpeech     bool
	Confirmed    bool
	Confidence   float64
	ChecksPassed int
	Class        FrameClass
}

// Detector turns per-frame metrics into confirmed speech decisions. A frame
// is speech-positive when at least 3 of 5 feature checks pass; speech is
// confirmed only after 3 consecutive positive frames so isolated transients
// never trigger a recording.
type Detector struct {
	consecutiveSpeech  int
	consecutiveSilence int
	confirmed          bool
}

// NewDetector creates a detector with no speech history.
func NewDetector() *Detector {
	return &Detector{}
}

// Evaluate classifies one frame. The signal flag comes from the noise gate;
// when it is false the frame counts as silence no matter what the raw
// metrics say.
func (d *Detector) Evaluate(m audio.Metrics, signal bool, thr audio.Thresholds) Decision {
	passed := 0
	if m.Energy > thr.Energy {
		passed++
	}
	if m.RMS > thr.RMS {
		passed++
	}
	if m.ZCR < thr.ZCR {
		passed++
	}
	if m.SpectralCentroid >= thr.CentroidMinHz && m.SpectralCentroid <= thr.CentroidMaxHz {
		passed++
	}
	if m.Confidence >= thr.MinConfidence {
		passed++
	}

	isSpeech := signal && passed >= requiredChecks

	if isSpeech {
		d.consecutiveSpeech++
		d.consecutiveSilence = 0
	} else {
		d.consecutiveSilence++
		d.consecutiveSpeech = 0
		d.confirmed = false
	}

	if d.consecutiveSpeech >= speechConfirmFrames {
		d.confirmed = true
	}

	dec := Decision{
		IsSpeech:     isSpeech,
		Confirmed:    d.confirmed,
		Confidence:   m.Confidence,
		ChecksPassed: passed,
	}
	switch {
	case dec.Confirmed:
		dec.Class = FrameSpeech
	case dec.IsSpeech:
		dec.Class = FrameIndeterminate
	default:
		dec.Class = FrameSilence
	}
	return dec
}

// Reset clears the consecutive-frame history.
func (d *Detector) Reset() {
	d.consecutiveSpeech = 0
	d.consecutiveSilence = 0
	d.confirmed = false
}

package audio

import (
	"math"
	"sort"
	"time"
)

// Metrics holds the scalar features derived from one audio frame. It is a
// value object recomputed every frame with no identity of its own.
type Metrics struct {
	RMS              float64
	ZCR              float64
	SpectralCentroid float64
	SpectralRolloff  float64
	Energy           float64
	Confidence       float64
}

// Thresholds are the decision boundaries used by the gate and the speech
// detector. Energy/RMS/Gate operate on samples normalized to [-1, 1].
type Thresholds struct {
	Energy        float64
	RMS           float64
	ZCR           float64
	CentroidMinHz float64
	CentroidMaxHz float64
	Gate          float64
	MinConfidence float64
}

// ExtractorConfig configures feature extraction and noise-floor calibration.
type ExtractorConfig struct {
	SampleRate        int
	CalibrationWindow time.Duration
	Defaults          Thresholds
	// FloorMin is the lowest value any calibration-derived threshold may take.
	FloorMin float64
}

const (
	// spectral bands for the linear-domain pseudo-spectrum
	spectralBands = 16
	// rolloff point: the frequency below which this share of cumulative
	// magnitude lies
	rolloffFraction = 0.85
	// calibration needs at least this many frames to be trusted; fewer is an
	// underrun and the defaults stay in effect
	minCalibrationFrames = 10
)

// Extractor converts raw audio frames into Metrics and maintains a rolling
// noise-floor calibration. One Extractor per client session; calibration runs
// once and is not repeated unless explicitly Reset.
type Extractor struct {
	cfg        ExtractorConfig
	thresholds Thresholds

	calibrated   bool
	calStartedAt time.Time
	calRMS       []float64
}

// NewExtractor creates an Extractor using the configured default thresholds
// until calibration completes.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.FloorMin <= 0 {
		cfg.FloorMin = 0.005
	}
	return &Extractor{
		cfg:        cfg,
		thresholds: cfg.Defaults,
	}
}

// Analyze computes the Metrics for one frame and feeds the calibration
// buffer. The caller passes a single now through the whole per-frame update
// so all timing decisions stay consistent.
func (e *Extractor) Analyze(f Frame, now time.Time) Metrics {
	n := len(f.Samples)
	if n == 0 {
		return Metrics{}
	}

	var sumSq, sumAbs float64
	crossings := 0
	for i, s := range f.Samples {
		x := float64(s) / 32768.0
		sumSq += x * x
		sumAbs += math.Abs(x)
		if i > 0 && (s >= 0) != (f.Samples[i-1] >= 0) {
			crossings++
		}
	}

	m := Metrics{
		RMS:    math.Sqrt(sumSq / float64(n)),
		Energy: sumAbs / float64(n),
	}
	if n > 1 {
		m.ZCR = float64(crossings) / float64(n-1)
	}
	m.SpectralCentroid, m.SpectralRolloff = e.spectralShape(f)
	m.Confidence = e.confidence(m)

	e.calibrate(m.RMS, now)
	return m
}

// spectralShape estimates centroid and rolloff from a coarse band-magnitude
// spectrum computed with Goertzel filters. No full FFT: a handful of bands is
// enough to stay monotonic with actual spectral energy concentration.
func (e *Extractor) spectralShape(f Frame) (centroid, rolloff float64) {
	nyquist := float64(f.SampleRate) / 2
	mags := make([]float64, spectralBands)
	centers := make([]float64, spectralBands)

	var total float64
	for b := 0; b < spectralBands; b++ {
		centers[b] = nyquist * (float64(b) + 0.5) / spectralBands
		mags[b] = goertzelMagnitude(f.Samples, centers[b], f.SampleRate)
		total += mags[b]
	}
	if total == 0 {
		return 0, 0
	}

	var weighted float64
	for b := 0; b < spectralBands; b++ {
		weighted += centers[b] * mags[b]
	}
	centroid = weighted / total

	var cum float64
	rolloff = centers[spectralBands-1]
	for b := 0; b < spectralBands; b++ {
		cum += mags[b]
		if cum >= rolloffFraction*total {
			rolloff = centers[b]
			break
		}
	}
	return centroid, rolloff
}

// goertzelMagnitude evaluates the magnitude of one frequency bin over the
// frame using the Goertzel recurrence.
func goertzelMagnitude(samples []int16, freq float64, sampleRate int) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, s := range samples {
		x := float64(s) / 32768.0
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power) / float64(n)
}

// confidence blends the individual features into one score in [0, 1].
func (e *Extractor) confidence(m Metrics) float64 {
	t := e.thresholds

	rmsScore := 0.0
	if t.RMS > 0 {
		rmsScore = math.Min(m.RMS/t.RMS, 1)
	}
	energyScore := 0.0
	if t.Energy > 0 {
		energyScore = math.Min(m.Energy/t.Energy, 1)
	}
	zcrScore := 1.0
	if t.ZCR > 0 {
		zcrScore = 1 - math.Min(m.ZCR/t.ZCR, 1)
	}
	bandScore := 0.0
	if m.SpectralCentroid >= t.CentroidMinHz && m.SpectralCentroid <= t.CentroidMaxHz {
		bandScore = 1.0
	}

	return 0.3*rmsScore + 0.3*energyScore + 0.2*zcrScore + 0.2*bandScore
}

// calibrate records frame RMS during the warm-up window and derives the
// noise-floor thresholds once the window elapses.
func (e *Extractor) calibrate(rms float64, now time.Time) {
	if e.calibrated {
		return
	}
	if e.calStartedAt.IsZero() {
		e.calStartedAt = now
	}

	if now.Sub(e.calStartedAt) < e.cfg.CalibrationWindow {
		e.calRMS = append(e.calRMS, rms)
		return
	}

	e.calibrated = true
	if len(e.calRMS) < minCalibrationFrames {
		// calibration underrun: keep the static defaults
		e.calRMS = nil
		return
	}

	floor := percentile(e.calRMS, 0.95)
	e.calRMS = nil

	e.thresholds.Energy = math.Max(2*floor, e.cfg.FloorMin)
	e.thresholds.RMS = math.Max(3*floor, e.cfg.FloorMin)
	e.thresholds.Gate = math.Max(1.5*floor, e.cfg.FloorMin)
}

// percentile returns the p-quantile (0 < p <= 1) of values.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Thresholds returns the currently effective thresholds (defaults until
// calibration completes).
func (e *Extractor) Thresholds() Thresholds {
	return e.thresholds
}

// Calibrated reports whether noise-floor calibration has completed.
func (e *Extractor) Calibrated() bool {
	return e.calibrated
}

// Reset discards the calibration state so the warm-up window runs again.
func (e *Extractor) Reset() {
	e.calibrated = false
	e.calStartedAt = time.Time{}
	e.calRMS = nil
	e.thresholds = e.cfg.Defaults
}

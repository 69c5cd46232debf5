package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_gateway_active_connections",
		Help: "Number of connected clients",
	})

	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_gateway_connections_total",
		Help: "Total number of client connections accepted",
	})

	connectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_gateway_connection_duration_seconds",
		Help:    "Duration of client connections in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Frame pipeline metrics
	framesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_frames_total",
		Help: "Total audio frames processed",
	}, []string{"result"}) // result: "speech", "silence", "dropped"

	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "relay"

	// Speech session metrics
	speechSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_gateway_speech_sessions_total",
		Help: "Total logical speech sessions opened",
	})

	recordingChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_recording_chunks_total",
		Help: "Total recording chunks relayed to the ASR engine",
	}, []string{"status"})

	// Arbiter metrics
	transcriptCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_transcript_candidates_total",
		Help: "Transcript candidates by disposition",
	}, []string{"disposition"}) // "accepted", "filtered", "duplicate", "stale"

	transcriptionsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_gateway_transcriptions_emitted_total",
		Help: "Final transcription outcomes emitted to clients",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics for the ASR connection
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// Metrics tracks metrics for a single client connection
type Metrics struct {
	connectionID string
	startTime    time.Time
	mu           sync.Mutex
}

// NewConnectionMetrics creates a metrics tracker for one connection
func NewConnectionMetrics(connectionID string) *Metrics {
	return &Metrics{
		connectionID: connectionID,
		startTime:    time.Now(),
	}
}

// RecordConnect records a new client connection
func (m *Metrics) RecordConnect() {
	activeConnections.Inc()
	totalConnections.Inc()
}

// RecordDisconnect records the end of a client connection
func (m *Metrics) RecordDisconnect() {
	activeConnections.Dec()
	connectionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFrame records one processed audio frame
func (m *Metrics) RecordFrame(result string) {
	framesProcessed.WithLabelValues(result).Inc()
}

// RecordAudioBytes records audio bytes moved through the pipeline
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordSessionStart records a new logical speech session
func (m *Metrics) RecordSessionStart() {
	speechSessions.Inc()
}

// RecordChunk records a relayed recording chunk
func (m *Metrics) RecordChunk(status string) {
	recordingChunks.WithLabelValues(status).Inc()
}

// RecordCandidate records a transcript candidate disposition
func (m *Metrics) RecordCandidate(disposition string) {
	transcriptCandidates.WithLabelValues(disposition).Inc()
}

// RecordTranscription records an emitted final transcription
func (m *Metrics) RecordTranscription() {
	transcriptionsEmitted.Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

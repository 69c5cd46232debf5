package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/arbiter"
	"github.com/scribeai/voice-gateway/internal/asr"
	"github.com/scribeai/voice-gateway/internal/audio"
	"github.com/scribeai/voice-gateway/internal/config"
	"github.com/scribeai/voice-gateway/internal/observability"
	"github.com/scribeai/voice-gateway/internal/relay"
	"github.com/scribeai/voice-gateway/internal/vad"
)

// defaultFrameElapsed stands in for the inter-frame gap when it cannot be
// measured: the first frame, or after a stall long enough that the real gap
// would wreck the gate ramps.
const (
	defaultFrameElapsed = 20 * time.Millisecond
	maxFrameElapsed     = 500 * time.Millisecond
)

// Engine is the upstream transcription link as the session sees it.
// *asr.Client is the production implementation.
type Engine interface {
	Connect(ctx context.Context) error
	SendChunk(wav []byte, generation int64) error
	Results() <-chan asr.Result
	Ping() error
	Close()
}

// wsConn is the subset of *websocket.Conn the session uses.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ClientSession owns the full processing chain for one connected client:
// feature extraction, noise gate, speech detection, session tracking, chunk
// relay and transcript arbitration. All frame processing happens on the read
// goroutine in arrival order; the results goroutine only touches the arbiter
// and the write side.
type ClientSession struct {
	id      string
	conn    wsConn
	cfg     *config.Config
	log     zerolog.Logger
	metrics *observability.Metrics

	extractor *audio.Extractor
	gate      *audio.NoiseGate
	detector  *vad.Detector
	session   *vad.Session
	relay     *relay.Relay
	arb       *arbiter.Arbiter
	engine    Engine

	writeMu       sync.Mutex
	lastFrameAt   time.Time
	wasCalibrated bool

	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*ClientSession)
}

// NewClientSession wires up the processing chain for one connection.
// onClose, when set, is called exactly once after teardown.
func NewClientSession(
	id string,
	conn wsConn,
	cfg *config.Config,
	lists config.Wordlists,
	engine Engine,
	log zerolog.Logger,
	onClose func(*ClientSession),
) *ClientSession {
	s := &ClientSession{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		log:     log,
		metrics: observability.NewConnectionMetrics(id),
		engine:  engine,
		done:    make(chan struct{}),
		onClose: onClose,
	}

	s.extractor = audio.NewExtractor(audio.ExtractorConfig{
		SampleRate:        cfg.SampleRate,
		CalibrationWindow: time.Duration(cfg.CalibrationWindowMs) * time.Millisecond,
		Defaults: audio.Thresholds{
			Energy:        cfg.EnergyThreshold,
			RMS:           cfg.RMSThreshold,
			ZCR:           cfg.ZCRThreshold,
			CentroidMinHz: cfg.SpectralCentroidMin,
			CentroidMaxHz: cfg.SpectralCentroidMax,
			Gate:          cfg.NoiseGateThreshold,
			MinConfidence: cfg.VADMinConfidence,
		},
	})
	s.gate = audio.NewNoiseGate(
		cfg.NoiseGateThreshold,
		time.Duration(cfg.AttackTimeMs)*time.Millisecond,
		time.Duration(cfg.ReleaseTimeMs)*time.Millisecond,
	)
	s.detector = vad.NewDetector()
	s.session = vad.NewSession(vad.SessionConfig{
		MinSpeechDuration: time.Duration(cfg.MinSpeechDurationMs) * time.Millisecond,
		MaxSilence:        time.Duration(cfg.MaxSilenceDurationMs) * time.Millisecond,
		SessionEndSilence: time.Duration(cfg.SessionEndSilenceMs) * time.Millisecond,
	})
	s.relay = relay.New(engine, cfg.SampleRate, cfg.MaxChunkSamples, log, func(err error) {
		s.metrics.RecordError("relay", "asr")
		s.sendError(fmt.Sprintf("transcription relay failed: %v", err))
	})
	s.arb = arbiter.New(arbiter.Config{
		Filter: arbiter.FilterConfig{
			MinConfidence:          cfg.ArbiterMinConfidence,
			MinLength:              cfg.ArbiterMinLength,
			MaxLength:              cfg.ArbiterMaxLength,
			MinWords:               cfg.ArbiterMinWords,
			MaxWords:               cfg.ArbiterMaxWords,
			EnableNoiseWordFilter:  cfg.EnableNoiseWordFilter,
			EnableRepetitionFilter: cfg.EnableRepetitionFilter,
			EnableLanguageFilter:   cfg.EnableLanguageFilter,
			ShortWhitelist:         lists.ShortWhitelist,
			HallucinationPhrases:   lists.HallucinationPhrases,
		},
		DebounceDelay: time.Duration(cfg.DebounceDelayMs) * time.Millisecond,
	}, log, s.emitFinal)

	return s
}

// Run drives the session until the client disconnects. Blocking.
func (s *ClientSession) Run(ctx context.Context) {
	defer s.Close()

	s.metrics.RecordConnect()
	s.log.Info().Msg("client connected")
	s.sendMessage("connected", "voice gateway ready: "+s.id, nil)

	if err := s.engine.Connect(ctx); err != nil {
		// audio is still captured and analyzed locally; relay resumes if the
		// engine comes back for a later chunk
		s.log.Error().Err(err).Msg("transcription engine unavailable")
		s.metrics.RecordError("connect", "asr")
		s.sendError("transcription engine unavailable")
	}

	go s.consumeResults()
	go s.keepalive()

	s.readLoop()
}

// keepalive pings the engine so idle connections are not reaped between
// utterances.
func (s *ClientSession) keepalive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.engine.Ping(); err != nil {
				s.log.Debug().Err(err).Msg("engine keepalive failed")
			}
		}
	}
}

func (s *ClientSession) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug().Err(err).Msg("client read loop ended")
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if len(data) <= minAudioPayload {
				s.metrics.RecordFrame("dropped")
				continue
			}
			s.handleFrame(data, time.Now())
		case websocket.TextMessage:
			s.handleCommand(data, time.Now())
		}
	}
}

// handleFrame runs one audio frame through the whole chain. A malformed
// frame is dropped; the next frame starts clean.
func (s *ClientSession) handleFrame(payload []byte, now time.Time) {
	frame, err := audio.DecodeFrame(payload, s.cfg.SampleRate)
	if err != nil {
		s.metrics.RecordFrame("dropped")
		s.sendError(fmt.Sprintf("bad audio frame: %v", err))
		return
	}
	s.metrics.RecordAudioBytes("in", int64(len(payload)))

	elapsed := defaultFrameElapsed
	if !s.lastFrameAt.IsZero() {
		if gap := now.Sub(s.lastFrameAt); gap > 0 && gap <= maxFrameElapsed {
			elapsed = gap
		}
	}
	s.lastFrameAt = now

	m := s.extractor.Analyze(frame, now)
	if !s.wasCalibrated && s.extractor.Calibrated() {
		s.wasCalibrated = true
		thr := s.extractor.Thresholds()
		s.gate.SetThreshold(thr.Gate)
		s.log.Info().
			Float64("rms_threshold", thr.RMS).
			Float64("energy_threshold", thr.Energy).
			Float64("gate_threshold", thr.Gate).
			Msg("noise floor calibrated")
	}

	gated, signal := s.gate.Apply(m, elapsed)
	decision := s.detector.Evaluate(gated, signal, s.extractor.Thresholds())

	if decision.IsSpeech {
		s.metrics.RecordFrame("speech")
	} else {
		s.metrics.RecordFrame("silence")
	}

	s.applyEvents(s.session.Update(decision.Class, now))

	if s.session.Recording() {
		s.relay.Append(frame.Samples)
		s.metrics.RecordAudioBytes("relay", int64(len(payload)))
	}

	s.sendVADResult(decision, gated, now)
}

func (s *ClientSession) handleCommand(data []byte, now time.Time) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.metrics.RecordError("protocol", "gateway")
		s.sendError("malformed control message")
		return
	}

	switch cmd.Type {
	case "ping":
		s.sendMessage("pong", "", nil)
	case "start_recording":
		s.applyEvents(s.session.ForceStart(now))
	case "stop_recording":
		s.applyEvents(s.session.ForceStopChunk(now))
	default:
		s.sendError(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

// applyEvents reacts to session transitions in order.
func (s *ClientSession) applyEvents(events []vad.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case vad.SessionOpened:
			s.metrics.RecordSessionStart()
			s.log.Info().Int64("generation", ev.Generation).Msg("speech session opened")

		case vad.ChunkStarted:
			s.relay.StartChunk(ev.Generation)
			s.sendMessage("speech_detected", "speech detected", nil)
			s.log.Debug().Int64("generation", ev.Generation).Msg("recording chunk started")

		case vad.ChunkStopped:
			if sent := s.relay.StopChunk(); sent > 0 {
				s.metrics.RecordChunk("sent")
			} else {
				s.metrics.RecordChunk("empty")
			}
			s.log.Debug().Int64("generation", ev.Generation).Msg("recording chunk stopped")

		case vad.SessionEnded:
			s.detector.Reset()
			s.log.Info().Int64("generation", ev.Generation).Msg("speech session ended")
		}
	}
}

// consumeResults forwards engine transcriptions into the arbiter, dropping
// results that answer a session older than the current one.
func (s *ClientSession) consumeResults() {
	for {
		select {
		case <-s.done:
			return
		case result, ok := <-s.engine.Results():
			if !ok {
				return
			}

			if result.Generation < s.session.Generation() {
				s.metrics.RecordCandidate(string(arbiter.RejectedStale))
				s.log.Debug().
					Int64("generation", result.Generation).
					Int64("current", s.session.Generation()).
					Str("text", result.Text).
					Msg("dropping stale transcription result")
				continue
			}

			disp := s.arb.Submit(arbiter.Candidate{
				Text:       result.Text,
				Confidence: result.Confidence,
				IsFinal:    result.IsFinal,
				Generation: result.Generation,
				ReceivedAt: result.ReceivedAt,
			})
			s.metrics.RecordCandidate(string(disp))

			if disp == arbiter.AcceptedPartial {
				s.sendTranscription(result.Text, result.Confidence, false, "asr")
			}
		}
	}
}

// emitFinal delivers the arbiter's winner to the client.
func (s *ClientSession) emitFinal(t arbiter.Transcription) {
	select {
	case <-s.done:
		return
	default:
	}
	s.metrics.RecordTranscription()
	s.sendTranscription(t.Text, t.Confidence, true, "arbiter")
}

func (s *ClientSession) sendVADResult(d vad.Decision, m audio.Metrics, now time.Time) {
	data, err := json.Marshal(vadResultData{
		IsSpeech:   d.IsSpeech,
		Confidence: d.Confidence,
		RMS:        m.RMS,
		Timestamp:  now.UnixMilli(),
	})
	if err != nil {
		return
	}
	s.sendMessage("vad_result", "", data)
}

func (s *ClientSession) sendTranscription(text string, confidence float64, isFinal bool, source string) {
	data, err := json.Marshal(transcriptionData{
		Text:       text,
		Confidence: confidence,
		IsFinal:    isFinal,
		Source:     source,
	})
	if err != nil {
		return
	}
	s.sendMessage("transcription", "", data)
}

func (s *ClientSession) sendError(message string) {
	s.sendMessage("error", message, nil)
}

func (s *ClientSession) sendMessage(msgType, message string, data json.RawMessage) {
	payload, err := json.Marshal(serverMessage{
		Type:      msgType,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	})
	if err != nil {
		return
	}

	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Debug().Err(err).Str("type", msgType).Msg("client write failed")
	}
}

// ID returns the connection identifier.
func (s *ClientSession) ID() string {
	return s.id
}

// SessionActive reports whether a speech session is currently open.
func (s *ClientSession) SessionActive() bool {
	return s.session.Active()
}

// Close tears the session down: the arbiter is cancelled without emitting,
// in-flight relay sends drain, and the engine connection is closed. Safe to
// call more than once.
func (s *ClientSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.arb.Close()
		s.relay.Close()
		s.engine.Close()
		s.conn.Close()
		s.metrics.RecordDisconnect()
		s.log.Info().Msg("client disconnected")
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

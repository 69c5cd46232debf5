package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the voice gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// External ASR engine WebSocket endpoint (e.g. ws://asr:3000/ws/asr)
	ASRURL string `envconfig:"ASR_URL" required:"true"`

	// Audio format expected on the wire: raw little-endian 16-bit PCM, mono
	SampleRate int `envconfig:"SAMPLE_RATE" default:"16000"`

	// VAD feature thresholds. RMS/energy operate on samples normalized to
	// [-1, 1]; these act as pre-calibration defaults and are replaced once
	// the noise-floor calibration window completes.
	EnergyThreshold     float64 `envconfig:"ENERGY_THRESHOLD" default:"0.02"`
	RMSThreshold        float64 `envconfig:"RMS_THRESHOLD" default:"0.04"`
	ZCRThreshold        float64 `envconfig:"ZCR_THRESHOLD" default:"0.35"`
	SpectralCentroidMin float64 `envconfig:"SPECTRAL_CENTROID_MIN" default:"85"`
	SpectralCentroidMax float64 `envconfig:"SPECTRAL_CENTROID_MAX" default:"3000"`
	VADMinConfidence    float64 `envconfig:"VAD_MIN_CONFIDENCE" default:"0.45"`

	// Noise gate
	NoiseGateThreshold float64 `envconfig:"NOISE_GATE_THRESHOLD" default:"0.03"`
	AttackTimeMs       int     `envconfig:"ATTACK_TIME_MS" default:"10"`
	ReleaseTimeMs      int     `envconfig:"RELEASE_TIME_MS" default:"100"`

	// Noise-floor calibration window at session start
	CalibrationWindowMs int `envconfig:"CALIBRATION_WINDOW_MS" default:"3000"`

	// Session timing
	MinSpeechDurationMs  int `envconfig:"MIN_SPEECH_DURATION_MS" default:"500"`
	MaxSilenceDurationMs int `envconfig:"MAX_SILENCE_DURATION_MS" default:"1000"`
	SessionEndSilenceMs  int `envconfig:"SESSION_END_SILENCE_MS" default:"1500"`

	// Transcription arbiter. The confidence floor is deliberately permissive:
	// values above ~0.7 have been observed to silently discard all valid
	// speech, while 0.5 still rejects ASR noise.
	ArbiterMinConfidence   float64 `envconfig:"ARBITER_MIN_CONFIDENCE" default:"0.5"`
	ArbiterMinLength       int     `envconfig:"ARBITER_MIN_LENGTH" default:"2"`
	ArbiterMinWords        int     `envconfig:"ARBITER_MIN_WORDS" default:"2"`
	ArbiterMaxWords        int     `envconfig:"ARBITER_MAX_WORDS" default:"60"`
	ArbiterMaxLength       int     `envconfig:"ARBITER_MAX_LENGTH" default:"300"`
	EnableNoiseWordFilter  bool    `envconfig:"ENABLE_NOISE_WORD_FILTER" default:"true"`
	EnableRepetitionFilter bool    `envconfig:"ENABLE_REPETITION_FILTER" default:"true"`
	EnableLanguageFilter   bool    `envconfig:"ENABLE_LANGUAGE_FILTER" default:"false"`
	DebounceDelayMs        int     `envconfig:"DEBOUNCE_DELAY_MS" default:"2000"`

	// Optional YAML file extending the arbiter word lists
	ArbiterWordlistFile string `envconfig:"ARBITER_WORDLIST_FILE" default:""`

	// Cap on accumulated samples for one recording chunk (60s at 16kHz)
	MaxChunkSamples int `envconfig:"MAX_CHUNK_SAMPLES" default:"960000"`

	// Resilience configuration for the upstream ASR connection
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Wordlists holds the arbiter's configurable word lists. ShortWhitelist
// entries are meaningful single-word utterances exempt from the minimum word
// count; HallucinationPhrases mark ASR output that is always rejected.
type Wordlists struct {
	ShortWhitelist       []string `yaml:"short_whitelist"`
	HallucinationPhrases []string `yaml:"hallucination_phrases"`
}

// DefaultWordlists returns the built-in arbiter word lists.
func DefaultWordlists() Wordlists {
	return Wordlists{
		ShortWhitelist: []string{
			"yes", "no", "ok", "okay", "hello", "hi", "stop", "sure",
			"thanks", "bye", "help", "repeat", "continue",
		},
		HallucinationPhrases: []string{
			"thank you for watching",
			"thanks for watching",
			"please subscribe",
			"subtitles by",
			"see you in the next video",
		},
	}
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ASRURL == "" {
		return nil, fmt.Errorf("ASR_URL is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.MaxSilenceDurationMs >= cfg.SessionEndSilenceMs {
		return nil, fmt.Errorf("MAX_SILENCE_DURATION_MS (%d) must be below SESSION_END_SILENCE_MS (%d)",
			cfg.MaxSilenceDurationMs, cfg.SessionEndSilenceMs)
	}

	return &cfg, nil
}

// LoadWordlists returns the arbiter word lists, merging entries from the
// configured YAML file (if any) into the built-in defaults.
func (c *Config) LoadWordlists() (Wordlists, error) {
	lists := DefaultWordlists()
	if c.ArbiterWordlistFile == "" {
		return lists, nil
	}

	data, err := os.ReadFile(c.ArbiterWordlistFile)
	if err != nil {
		return lists, fmt.Errorf("failed to read wordlist file: %w", err)
	}

	var extra Wordlists
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return lists, fmt.Errorf("failed to parse wordlist file: %w", err)
	}

	lists.ShortWhitelist = append(lists.ShortWhitelist, extra.ShortWhitelist...)
	lists.HallucinationPhrases = append(lists.HallucinationPhrases, extra.HallucinationPhrases...)
	return lists, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package gateway

import "encoding/json"

// minAudioPayload: binary payloads at or below this size are ignored rather
// than decoded as audio, so tiny control blobs can never masquerade as a
// frame.
const minAudioPayload = 100

// clientCommand is an inbound structured message.
type clientCommand struct {
	Type string `json:"type"`
}

// serverMessage is the envelope for every structured message sent to the
// client.
type serverMessage struct {
	Type      string          `json:"type"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// vadResultData reports the per-frame VAD verdict for live feedback.
type vadResultData struct {
	IsSpeech   bool    `json:"isSpeech"`
	Confidence float64 `json:"confidence"`
	RMS        float64 `json:"rms"`
	Timestamp  int64   `json:"timestamp"`
}

// transcriptionData carries ASR partials and the arbiter's final winner.
type transcriptionData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
	Source     string  `json:"source"`
}

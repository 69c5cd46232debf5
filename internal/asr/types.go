package asr

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind tags the decoded upstream message variant.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindPing
	KindPong
	KindTranscription
	KindError
)

// String returns the kind name for logging.
func (k MessageKind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindTranscription:
		return "transcription"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one decoded frame from the transcription engine. Only the
// fields for the tagged Kind are meaningful.
type Message struct {
	Kind       MessageKind
	Text       string
	Confidence float64
	IsFinal    bool
	ErrorText  string
}

// audioEnvelope is the outbound chunk frame: a base64 WAV in a typed JSON
// envelope.
type audioEnvelope struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// controlEnvelope carries typed messages with no payload.
type controlEnvelope struct {
	Type string `json:"type"`
}

// ParseMessage decodes one upstream frame into its tagged variant. A
// transcription with no confidence is trusted fully, and one with no
// is_final flag counts as final: engines that never emit partials should
// not need to say so.
func ParseMessage(data []byte) (Message, error) {
	var raw struct {
		Type       string   `json:"type"`
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
		IsFinal    *bool    `json:"is_final"`
		Message    string   `json:"message"`
		Error      string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("malformed upstream message: %w", err)
	}

	switch raw.Type {
	case "ping":
		return Message{Kind: KindPing}, nil
	case "pong":
		return Message{Kind: KindPong}, nil
	case "transcription":
		m := Message{
			Kind:       KindTranscription,
			Text:       raw.Text,
			Confidence: 1.0,
			IsFinal:    true,
		}
		if raw.Confidence != nil {
			m.Confidence = *raw.Confidence
		}
		if raw.IsFinal != nil {
			m.IsFinal = *raw.IsFinal
		}
		return m, nil
	case "error":
		text := raw.Message
		if text == "" {
			text = raw.Error
		}
		return Message{Kind: KindError, ErrorText: text}, nil
	default:
		return Message{Kind: KindUnknown}, nil
	}
}

// Result is a transcription delivered to the pipeline, stamped with the
// session generation of the chunk it answers.
type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
	Generation int64
	ReceivedAt time.Time
}

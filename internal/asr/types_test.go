package asr

import "testing"

func TestParseMessage_Transcription(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"transcription","text":"hello world","confidence":0.87,"is_final":false}`))
	if err != nil {
		t.Fatalf("ParseMessage() failed: %v", err)
	}
	if msg.Kind != KindTranscription {
		t.Errorf("expected transcription kind, got %v", msg.Kind)
	}
	if msg.Text != "hello world" {
		t.Errorf("expected text %q, got %q", "hello world", msg.Text)
	}
	if msg.Confidence != 0.87 {
		t.Errorf("expected confidence 0.87, got %f", msg.Confidence)
	}
	if msg.IsFinal {
		t.Error("expected non-final result")
	}
}

func TestParseMessage_TranscriptionDefaults(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"transcription","text":"hello"}`))
	if err != nil {
		t.Fatalf("ParseMessage() failed: %v", err)
	}
	if msg.Confidence != 1.0 {
		t.Errorf("expected missing confidence to default to 1.0, got %f", msg.Confidence)
	}
	if !msg.IsFinal {
		t.Error("expected missing is_final to default to true")
	}
}

func TestParseMessage_ExplicitZeroConfidence(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"transcription","text":"hm","confidence":0}`))
	if err != nil {
		t.Fatalf("ParseMessage() failed: %v", err)
	}
	if msg.Confidence != 0 {
		t.Errorf("expected explicit zero confidence preserved, got %f", msg.Confidence)
	}
}

func TestParseMessage_ControlAndError(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"ping"}`))
	if err != nil || msg.Kind != KindPing {
		t.Errorf("expected ping, got %v (err %v)", msg.Kind, err)
	}

	msg, err = ParseMessage([]byte(`{"type":"pong"}`))
	if err != nil || msg.Kind != KindPong {
		t.Errorf("expected pong, got %v (err %v)", msg.Kind, err)
	}

	msg, err = ParseMessage([]byte(`{"type":"error","message":"model overloaded"}`))
	if err != nil {
		t.Fatalf("ParseMessage() failed: %v", err)
	}
	if msg.Kind != KindError || msg.ErrorText != "model overloaded" {
		t.Errorf("expected error with message, got %v %q", msg.Kind, msg.ErrorText)
	}
}

func TestParseMessage_UnknownType(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"telemetry","data":"x"}`))
	if err != nil {
		t.Fatalf("ParseMessage() failed: %v", err)
	}
	if msg.Kind != KindUnknown {
		t.Errorf("expected unknown kind, got %v", msg.Kind)
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	if _, err := ParseMessage([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

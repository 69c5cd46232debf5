package audio

import (
	"bytes"
	"math"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{0, 100, -100, 32767}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) {
		t.Errorf("expected RIFF marker, got %q", data[0:4])
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Errorf("expected WAVE marker, got %q", data[8:12])
	}
	if !bytes.Equal(data[36:40], []byte("data")) {
		t.Errorf("expected data marker, got %q", data[36:40])
	}
}

func TestEncodeWAV_Roundtrip(t *testing.T) {
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(float64(i)/10))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV() failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("expected error for truncated data")
	}

	data, err := EncodeWAV([]int16{1, 2, 3}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}
	data[0] = 'X'
	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("expected error for corrupted RIFF marker")
	}
}

func TestWAVDuration(t *testing.T) {
	samples := make([]int16, 16000) // one second at 16kHz
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}

	dur, err := WAVDuration(data)
	if err != nil {
		t.Fatalf("WAVDuration() failed: %v", err)
	}
	if dur != 1.0 {
		t.Errorf("expected 1.0s duration, got %f", dur)
	}
}

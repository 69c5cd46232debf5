package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/audio"
	"github.com/scribeai/voice-gateway/internal/resilience"
)

// fakeEngine is a minimal in-process transcription engine: it answers every
// audio chunk with a canned transcription and every ping with a pong.
func fakeEngine(t *testing.T, transcript string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var envelope struct {
				Type string `json:"type"`
				Data string `json:"data"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				t.Errorf("engine got undecodable message: %v", err)
				return
			}

			switch envelope.Type {
			case "ping":
				conn.WriteJSON(map[string]string{"type": "pong"})
			case "audio":
				wav, err := base64.StdEncoding.DecodeString(envelope.Data)
				if err != nil {
					t.Errorf("audio payload not base64: %v", err)
					return
				}
				if _, _, err := audio.DecodeWAV(wav); err != nil {
					t.Errorf("audio payload not a WAV container: %v", err)
					return
				}
				conn.WriteJSON(map[string]any{
					"type":       "transcription",
					"text":       transcript,
					"confidence": 0.9,
					"is_final":   true,
				})
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClient_SendChunkAndReceiveResult(t *testing.T) {
	server := fakeEngine(t, "hello from the engine")
	defer server.Close()

	c := NewClient(ClientConfig{URL: wsURL(server)}, zerolog.Nop())
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	wav, err := audio.EncodeWAV(make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}
	if err := c.SendChunk(wav, 7); err != nil {
		t.Fatalf("SendChunk() failed: %v", err)
	}

	select {
	case result := <-c.Results():
		if result.Text != "hello from the engine" {
			t.Errorf("expected engine transcript, got %q", result.Text)
		}
		if result.Confidence != 0.9 {
			t.Errorf("expected confidence 0.9, got %f", result.Confidence)
		}
		if result.Generation != 7 {
			t.Errorf("expected result stamped with generation 7, got %d", result.Generation)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription result")
	}
}

func TestClient_SendChunkEngineUnreachable(t *testing.T) {
	c := NewClient(ClientConfig{
		URL:   "ws://127.0.0.1:1/nowhere",
		Retry: &resilience.RetryConfig{MaxAttempts: 1},
	}, zerolog.Nop())
	defer c.Close()

	wav, _ := audio.EncodeWAV([]int16{1, 2, 3}, 16000)
	if err := c.SendChunk(wav, 1); err == nil {
		t.Error("expected error when the engine cannot be reached")
	}
}

func TestClient_SendChunkRedialsAfterFailedConnect(t *testing.T) {
	server := fakeEngine(t, "engine came back")
	defer server.Close()

	// the link never came up at session start; the first chunk has to
	// establish it
	c := NewClient(ClientConfig{URL: wsURL(server)}, zerolog.Nop())
	defer c.Close()

	wav, err := audio.EncodeWAV(make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() failed: %v", err)
	}
	if err := c.SendChunk(wav, 2); err != nil {
		t.Fatalf("SendChunk() failed to bring the link up: %v", err)
	}

	select {
	case result := <-c.Results():
		if result.Text != "engine came back" {
			t.Errorf("expected engine transcript, got %q", result.Text)
		}
		if result.Generation != 2 {
			t.Errorf("expected result stamped with generation 2, got %d", result.Generation)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcription result")
	}
}

func TestClient_GenerationTracksLatestChunk(t *testing.T) {
	server := fakeEngine(t, "ok then")
	defer server.Close()

	c := NewClient(ClientConfig{URL: wsURL(server)}, zerolog.Nop())
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}

	wav, _ := audio.EncodeWAV(make([]int16, 160), 16000)
	c.SendChunk(wav, 3)
	c.SendChunk(wav, 4)

	if c.LastGeneration() != 4 {
		t.Errorf("expected last generation 4, got %d", c.LastGeneration())
	}
}

package asr

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/observability"
	"github.com/scribeai/voice-gateway/internal/resilience"
)

// ClientConfig configures the upstream transcription engine link.
type ClientConfig struct {
	URL                 string
	HandshakeTimeout    time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	Reconnect           *resilience.ReconnectConfig
	Retry               *resilience.RetryConfig
}

// Client maintains one WebSocket connection to the transcription engine per
// client session. Audio chunks go up as base64 WAV envelopes; transcription
// results come back on the Results channel, stamped with the generation of
// the most recently sent chunk so the pipeline can drop late answers.
type Client struct {
	cfg     ClientConfig
	dialer  *websocket.Dialer
	log     zerolog.Logger
	breaker *resilience.CircuitBreaker

	writeMu sync.Mutex
	conn    *websocket.Conn

	lastGen atomic.Int64
	results chan Result

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.BreakerMaxFailures <= 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerResetTimeout <= 0 {
		cfg.BreakerResetTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log:     log,
		breaker: resilience.NewCircuitBreaker("asr", cfg.BreakerMaxFailures, cfg.BreakerResetTimeout),
		results: make(chan Result, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})
	return c
}

// Connect dials the engine and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to transcription engine: %w", err)
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	c.log.Info().Str("url", c.cfg.URL).Msg("connected to transcription engine")

	go c.readLoop(conn)
	return nil
}

// Results returns the channel of incoming transcription results. It is
// closed when the connection is lost for good or the client is closed.
func (c *Client) Results() <-chan Result {
	return c.results
}

// SendChunk ships one WAV-encoded chunk upstream. The generation is recorded
// before the write so results arriving from this point on carry it.
func (c *Client) SendChunk(wav []byte, generation int64) error {
	c.lastGen.Store(generation)

	envelope := audioEnvelope{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString(wav),
	}

	err := c.breaker.Call(func() error {
		return c.writeJSON(envelope)
	})
	if err != nil {
		observability.IncrementCircuitBreakerFailures("asr")
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// Ping sends an application-level keepalive.
func (c *Client) Ping() error {
	return c.writeJSON(controlEnvelope{Type: "ping"})
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		if err := c.redialLocked(); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(v)
}

// redialLocked brings up a connection that never succeeded, so a chunk sent
// after the engine was down at session start can still reach it once the
// engine recovers. Caller holds writeMu.
func (c *Client) redialLocked() error {
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}

	var conn *websocket.Conn
	err := resilience.Retry(func() error {
		dialed, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err != nil {
			return err
		}
		conn = dialed
		return nil
	}, c.cfg.Retry, resilience.IsRetryableNetworkError)
	if err != nil {
		return fmt.Errorf("transcription engine unreachable: %w", err)
	}

	c.conn = conn
	c.log.Info().Str("url", c.cfg.URL).Msg("connected to transcription engine")
	go c.readLoop(conn)
	return nil
}

// readLoop consumes engine messages until the connection drops, then tries
// to re-establish it. The results channel is closed only when reconnection
// gives up or the client is closed.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				close(c.results)
				return
			}

			c.log.Warn().Err(err).Msg("transcription engine connection lost")
			conn = c.reconnect()
			if conn == nil {
				close(c.results)
				return
			}
			continue
		}

		msg, err := ParseMessage(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("undecodable message from transcription engine")
			continue
		}

		switch msg.Kind {
		case KindPing:
			if err := c.writeJSON(controlEnvelope{Type: "pong"}); err != nil {
				c.log.Warn().Err(err).Msg("failed to answer engine ping")
			}
		case KindPong:
			// keepalive answered, nothing to do
		case KindTranscription:
			result := Result{
				Text:       msg.Text,
				Confidence: msg.Confidence,
				IsFinal:    msg.IsFinal,
				Generation: c.lastGen.Load(),
				ReceivedAt: time.Now(),
			}
			select {
			case c.results <- result:
			default:
				c.log.Warn().Str("text", msg.Text).Msg("result channel full, dropping transcription")
			}
		case KindError:
			c.log.Error().Str("message", msg.ErrorText).Msg("transcription engine reported an error")
		}
	}
}

// reconnect re-dials with backoff. Returns nil when reconnection is
// exhausted or the client is closing.
func (c *Client) reconnect() *websocket.Conn {
	var conn *websocket.Conn
	err := resilience.Reconnect(c.ctx, func() error {
		dialed, _, err := c.dialer.DialContext(c.ctx, c.cfg.URL, nil)
		if err != nil {
			return err
		}
		conn = dialed
		return nil
	}, c.cfg.Reconnect)
	if err != nil {
		c.log.Error().Err(err).Msg("giving up on transcription engine reconnection")
		return nil
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()
	return conn
}

// LastGeneration returns the generation stamped on the most recent chunk.
func (c *Client) LastGeneration() int64 {
	return c.lastGen.Load()
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.writeMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.writeMu.Unlock()
	})
}

package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/scribeai/voice-gateway/internal/asr"
	"github.com/scribeai/voice-gateway/internal/config"
	"github.com/scribeai/voice-gateway/internal/observability"
	"github.com/scribeai/voice-gateway/internal/resilience"
)

// EngineFactory creates the upstream transcription link for one client
// connection.
type EngineFactory func(connectionID string, log zerolog.Logger) Engine

// Registry owns one ClientSession per connected client and serves the
// WebSocket endpoint.
type Registry struct {
	cfg       *config.Config
	lists     config.Wordlists
	log       zerolog.Logger
	newEngine EngineFactory
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*ClientSession
}

// NewRegistry creates a registry. A nil engine factory uses the production
// ASR client.
func NewRegistry(cfg *config.Config, lists config.Wordlists, log zerolog.Logger, newEngine EngineFactory) *Registry {
	r := &Registry{
		cfg:       cfg,
		lists:     lists,
		log:       log,
		newEngine: newEngine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// browser clients connect from arbitrary origins; auth is the
			// deployment's concern
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*ClientSession),
	}
	if r.newEngine == nil {
		r.newEngine = r.defaultEngine
	}
	return r
}

func (r *Registry) defaultEngine(connectionID string, log zerolog.Logger) Engine {
	return asr.NewClient(asr.ClientConfig{
		URL:                 r.cfg.ASRURL,
		BreakerMaxFailures:  r.cfg.CircuitBreakerMaxFailures,
		BreakerResetTimeout: time.Duration(r.cfg.CircuitBreakerResetTimeout) * time.Second,
		Reconnect: &resilience.ReconnectConfig{
			MaxAttempts: r.cfg.ReconnectMaxAttempts,
			Backoff:     time.Duration(r.cfg.ReconnectBackoff) * time.Millisecond,
			Multiplier:  2.0,
			MaxBackoff:  30 * time.Second,
		},
	}, log)
}

// HandleWS upgrades the request and runs the client session until
// disconnect. Blocking, as http handlers are.
func (r *Registry) HandleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := observability.NewConnectionID()
	log := observability.WithConnectionID(id)
	engine := r.newEngine(id, log)

	session := NewClientSession(id, conn, r.cfg, r.lists, engine, log, r.remove)
	r.add(session)

	session.Run(req.Context())
}

func (r *Registry) add(s *ClientSession) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

func (r *Registry) remove(s *ClientSession) {
	r.mu.Lock()
	delete(r.sessions, s.ID())
	r.mu.Unlock()
}

// Counts returns the number of connected clients and how many of them have
// an open speech session. Feeds the health endpoint.
func (r *Registry) Counts() (connections, sessions int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections = len(r.sessions)
	for _, s := range r.sessions {
		if s.SessionActive() {
			sessions++
		}
	}
	return
}

// CloseAll tears down every live session, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := make([]*ClientSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

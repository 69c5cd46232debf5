package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/scribeai/voice-gateway/internal/config"
	"github.com/scribeai/voice-gateway/internal/gateway"
	"github.com/scribeai/voice-gateway/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger("info", false)
		log := observability.GetLogger()
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	log := observability.GetLogger()

	lists, err := cfg.LoadWordlists()
	if err != nil {
		// defaults are still in place, so a broken wordlist file is not fatal
		log.Warn().Err(err).Msg("failed to load arbiter wordlists, using defaults")
	}

	registry := gateway.NewRegistry(cfg, lists, log, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", registry.HandleWS)
	mux.HandleFunc("/health", observability.HealthCheckHandler(registry.Counts))
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"asr": asrReachable(cfg.ASRURL),
	}))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Str("asr_url", cfg.ASRURL).
			Msg("voice gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("voice gateway exited with error")
	}
	log.Info().Msg("voice gateway stopped")
}

// asrReachable probes the transcription engine endpoint for the readiness
// check.
func asrReachable(url string) observability.HealthCheckFunc {
	return func(ctx context.Context) (bool, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return false, err
		}
		conn.Close()
		return true, nil
	}
}

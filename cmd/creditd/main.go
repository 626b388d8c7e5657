package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"credit-serve/internal/artifacts"
	"credit-serve/internal/audit"
	"credit-serve/internal/cfg"
	"credit-serve/internal/metrics"
	"credit-serve/internal/server"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLogLevel(c.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional registry fetch before the one-time artifact load.
	if c.RegistryURL != "" {
		registry := artifacts.NewRegistry(c.RegistryURL, c.RegistryTimeout)
		if err := registry.FetchBundle(c.ArtifactsDir); err != nil {
			log.Fatal().Err(err).Msg("artifact registry fetch failed")
		}
	}

	m := metrics.New()

	// The bundle is loaded exactly once; there is no serving without it.
	loadStart := time.Now()
	bundle, err := artifacts.Load(c.ArtifactsDir)
	if err != nil {
		switch {
		case errors.Is(err, artifacts.ErrArtifactsMissing):
			log.Fatal().Err(err).Msg("artifacts missing")
		case errors.Is(err, artifacts.ErrArtifactIncompatible):
			log.Fatal().Err(err).Msg("artifacts incompatible with current pipeline types")
		default:
			log.Fatal().Err(err).Msg("artifact load failed")
		}
	}
	m.ArtifactLoadSeconds.Set(time.Since(loadStart).Seconds())

	auditStore := initializeAudit(c)
	if auditStore != nil {
		defer auditStore.Close()
	}

	srv := server.New(c.ListenAddr, bundle, m, auditStore, c.ArtifactsDir)

	startMetricsServer(ctx, c)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func initializeAudit(c cfg.Settings) *audit.Store {
	if c.DataPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataPath, 0o755); err != nil {
		log.Warn().Err(err).Msg("failed to create data path, audit log disabled")
		return nil
	}
	store, err := audit.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open audit store, audit log disabled")
		return nil
	}
	return store
}

func startMetricsServer(ctx context.Context, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", c.MetricsPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

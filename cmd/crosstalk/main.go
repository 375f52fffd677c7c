package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crosstalk-ai/crosstalk/internal/config"
	"github.com/crosstalk-ai/crosstalk/internal/device"
	"github.com/crosstalk-ai/crosstalk/internal/observability"
	"github.com/crosstalk-ai/crosstalk/internal/remote"
	"github.com/crosstalk-ai/crosstalk/internal/resilience"
	"github.com/crosstalk-ai/crosstalk/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

// logSink forwards session state changes and notices to the log; a UI
// frontend would render them instead.
type logSink struct {
	logger zerolog.Logger
}

func (s *logSink) StateChanged(state session.State) {
	s.logger.Info().Str("state", state.String()).Msg("Session state changed")
}

func (s *logSink) Notice(text string) {
	s.logger.Warn().Str("notice", text).Msg("User notice")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before the logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("remote_url", cfg.RemoteURL).
		Str("source", cfg.SourceLanguage).
		Str("target", cfg.TargetLanguage).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Crosstalk client starting")

	// Diagnostics HTTP server: liveness plus Prometheus metrics.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", observability.HealthCheckHandler(version))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Str("port", cfg.DiagPort).Msg("Prometheus metrics enabled at /metrics")
	}
	diag := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.DiagPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := diag.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Diagnostics server failed to start")
		}
	}()

	dialer := &remote.WSDialer{
		URL:    cfg.RemoteURL,
		APIKey: cfg.RemoteAPIKey,
		Backoff: &resilience.BackoffConfig{
			MaxAttempts: cfg.DialMaxAttempts,
			Initial:     time.Duration(cfg.DialInitialBackoff) * time.Millisecond,
			Multiplier:  2.0,
			Max:         5 * time.Second,
		},
		Logger: logger,
	}

	// Synthetic devices; a desktop embedder wires real audio hardware here.
	mic := &device.ToneInput{
		SampleRate: cfg.InputSampleRate,
		Frequency:  440,
		Amplitude:  0.2,
	}
	speaker := &device.NullOutput{}

	controller := session.NewController(session.Options{
		SourceLanguage:   cfg.SourceLanguage,
		TargetLanguage:   cfg.TargetLanguage,
		Instructions:     cfg.Instructions,
		FrameSize:        cfg.FrameSize,
		InputSampleRate:  cfg.InputSampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
	}, mic, speaker, dialer, &logSink{logger: logger}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start session")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")
	controller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := diag.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Diagnostics server forced to shutdown")
	}

	logger.Info().Msg("Exited gracefully")
}

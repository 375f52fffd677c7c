package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the crosstalk client engine.
type Config struct {
	// Remote translation service
	RemoteURL    string `envconfig:"REMOTE_URL" required:"true"`    // wss:// endpoint of the translation service
	RemoteAPIKey string `envconfig:"REMOTE_API_KEY" required:"true"`

	// Languages
	SourceLanguage string `envconfig:"SOURCE_LANGUAGE" default:"en-US"`
	TargetLanguage string `envconfig:"TARGET_LANGUAGE" default:"es-ES"`

	// Persona instruction sent at session open
	Instructions string `envconfig:"INSTRUCTIONS" default:"You are a live interpreter. Translate everything you hear faithfully and speak the translation."`

	// Audio configuration
	InputSampleRate  int `envconfig:"INPUT_SAMPLE_RATE" default:"16000"`  // capture rate in Hz
	OutputSampleRate int `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000"` // playback rate in Hz
	FrameSize        int `envconfig:"FRAME_SIZE" default:"4096"`          // samples per capture frame

	// Remote dial backoff
	DialMaxAttempts    int `envconfig:"DIAL_MAX_ATTEMPTS" default:"3"`
	DialInitialBackoff int `envconfig:"DIAL_INITIAL_BACKOFF" default:"200"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	DiagPort       string `envconfig:"DIAG_PORT" default:"9090"`       // Diagnostics HTTP server port
}

// Load reads configuration from environment variables, first loading a
// .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without touching a .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("FRAME_SIZE must be positive, got %d", cfg.FrameSize)
	}
	if cfg.InputSampleRate <= 0 || cfg.OutputSampleRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got input=%d output=%d",
			cfg.InputSampleRate, cfg.OutputSampleRate)
	}
	if cfg.SourceLanguage == cfg.TargetLanguage {
		return nil, fmt.Errorf("source and target language must differ, got %q", cfg.SourceLanguage)
	}

	return &cfg, nil
}

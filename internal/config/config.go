package config

import (
	"errors"
	"time"
)

// Config is hematite's complete runtime configuration, assembled from
// HEMATITE_* environment variables per spec §6.4.
type Config struct {
	StreamsDir string

	Listen        string
	MetricsListen string

	JWTSecret       []byte
	JWTPublicKeyPEM []byte
	JWTAudience     string
	AuthzPolicy     string

	MaxOpenStreams int
	EvictionWait   time.Duration

	OTelEndpoint string

	LogLevel  string
	LogFormat string
}

// Default returns the built-in baseline for every field spec.md allows a
// default for. StreamsDir is left empty: it is required, and Load fails
// if it remains unset after FromEnv.
func Default() Config {
	return Config{
		Listen:         "0.0.0.0:8080",
		MetricsListen:  "0.0.0.0:9090",
		JWTAudience:    "hematite",
		MaxOpenStreams: 1024,
		EvictionWait:   5 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds a Config from built-in defaults overlaid with HEMATITE_*
// environment variables, then validates it.
func Load() (Config, error) {
	cfg := Default()
	FromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants Load relies on: a streams directory and
// exactly one JWT verification key.
func (c Config) Validate() error {
	if c.StreamsDir == "" {
		return errors.New("config: HEMATITE_STREAMS_DIR is required")
	}
	if len(c.JWTSecret) == 0 && len(c.JWTPublicKeyPEM) == 0 {
		return errors.New("config: exactly one of HEMATITE_JWT_SECRET or HEMATITE_JWT_PUBLIC_KEY is required")
	}
	if len(c.JWTSecret) > 0 && len(c.JWTPublicKeyPEM) > 0 {
		return errors.New("config: HEMATITE_JWT_SECRET and HEMATITE_JWT_PUBLIC_KEY are mutually exclusive")
	}
	return nil
}

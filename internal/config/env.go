package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays HEMATITE_* environment variables onto cfg.
// HEMATITE_STREAMS_DIR has no default: Validate rejects a Config that
// still has an empty StreamsDir after this call.
func FromEnv(cfg *Config) {
	if v := os.Getenv("HEMATITE_STREAMS_DIR"); v != "" {
		cfg.StreamsDir = v
	}
	if v := os.Getenv("HEMATITE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("HEMATITE_METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
	if v := os.Getenv("HEMATITE_JWT_SECRET"); v != "" {
		cfg.JWTSecret = []byte(v)
	}
	if v := os.Getenv("HEMATITE_JWT_PUBLIC_KEY"); v != "" {
		cfg.JWTPublicKeyPEM = []byte(v)
	}
	if v := os.Getenv("HEMATITE_JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("HEMATITE_AUTHZ_POLICY"); v != "" {
		cfg.AuthzPolicy = v
	}
	if v := os.Getenv("HEMATITE_MAX_OPEN_STREAMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxOpenStreams = n
		}
	}
	if v := os.Getenv("HEMATITE_EVICTION_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.EvictionWait = d
		}
	}
	if v := os.Getenv("HEMATITE_OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}
	if v := os.Getenv("HEMATITE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HEMATITE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// Package config loads hematite's runtime configuration from HEMATITE_*
// environment variables, falling back to built-in defaults where spec.md
// allows one and failing closed where it doesn't (HEMATITE_STREAMS_DIR has
// no default).
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr, err := streammgr.New(cfg.StreamsDir, streammgr.Options{MaxOpenStreams: cfg.MaxOpenStreams})
package config

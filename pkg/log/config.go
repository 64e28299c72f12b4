package log

import "fmt"

// Config is the declarative form of logger construction used by
// ApplyConfig, matching hematite's HEMATITE_LOG_LEVEL / HEMATITE_LOG_FORMAT
// environment variables.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Format is "text" or "json".
	Format string
	// FilePath, if set, additionally appends output to this file.
	FilePath string
}

// ParseLevel maps a level name to a Level, defaulting to InfoLevel for
// anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// ApplyConfig builds a Logger from a declarative Config.
func ApplyConfig(cfg Config) (Logger, error) {
	var formatter Formatter
	switch cfg.Format {
	case "json":
		formatter = &JSONFormatter{}
	case "text", "":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{
		WithLevel(ParseLevel(cfg.Level)),
		WithFormatter(formatter),
		WithOutput(NewConsoleOutput()),
	}
	if cfg.FilePath != "" {
		fileOutput, err := NewFileOutput(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOutput(fileOutput))
	}
	return NewLogger(opts...), nil
}

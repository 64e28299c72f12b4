package log

import (
	"context"
	"log"
	"log/slog"
	"time"
)

// ToStdLogger adapts l into a *log.Logger for libraries (notably
// net/http.Server.ErrorLog) that take the standard library's logger type
// directly.
func ToStdLogger(l Logger) *log.Logger {
	base, ok := l.(*BaseLogger)
	if !ok {
		return log.Default()
	}
	return slog.NewLogLogger(newBridgeHandler(base), slog.LevelError)
}

// RedirectStdLog points the standard library's default logger at l, so
// third-party code that calls log.Print* is captured by l's pipeline too.
func RedirectStdLog(l Logger) func() {
	base, ok := l.(*BaseLogger)
	if !ok {
		return func() {}
	}
	prev := log.Default()
	log.SetOutput(slogWriter{handler: newBridgeHandler(base)})
	return func() { log.SetOutput(prev.Writer()) }
}

type slogWriter struct {
	handler *bridgeHandler
}

func (w slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	r := slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
	if err := w.handler.Handle(context.Background(), r); err != nil {
		return 0, err
	}
	return len(p), nil
}

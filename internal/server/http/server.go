// Package httpserver wires hematite's boundary adapters (C4): a
// net/http.Server with graceful shutdown, a Prometheus metrics endpoint,
// JWT authentication, and the stream routes implemented in controllers.
package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Cantido/hematite/internal/auth"
	"github.com/Cantido/hematite/internal/metrics"
	"github.com/Cantido/hematite/internal/server/http/controllers"
	"github.com/Cantido/hematite/internal/streammgr"
	"github.com/Cantido/hematite/pkg/log"
)

// Server serves hematite's HTTP API on one listener and its Prometheus
// metrics on a second, independent listener.
type Server struct {
	srv        *http.Server
	metricsSrv *http.Server
	lis        net.Listener
	metricsLis net.Listener
	logger     log.Logger
}

// New builds a Server. verifier and policy gate every request on
// Authorization per spec §6.3; m and tracer back the observability
// cross-cut described in spec §6.5.
func New(mgr *streammgr.Manager, verifier *auth.Verifier, policy *auth.Policy, m *metrics.Metrics, tracer oteltrace.Tracer, logger log.Logger) *Server {
	streamsMux := http.NewServeMux()
	streamsCtl := controllers.NewStreamsController(mgr, m, tracerAdapter{tracer}, logger)
	streamsCtl.RegisterRoutes(streamsMux)
	authed := auth.Middleware(verifier, policy, streamIDFromRequest, renderAuthError)(streamsMux)

	// /healthz is a liveness probe, not one of the spec's stream
	// endpoints; it stays outside the auth boundary so orchestrators
	// without a token can still poll it.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("/", authed)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return &Server{
		srv:        &http.Server{Handler: mux, ErrorLog: log.ToStdLogger(logger)},
		metricsSrv: &http.Server{Handler: metricsMux, ErrorLog: log.ToStdLogger(logger)},
		logger:     logger,
	}
}

// streamIDFromRequest extracts the {stream} path variable so the auth
// middleware can evaluate the authorization policy before the handler
// runs. A path outside /streams/ yields an empty stream name. /healthz
// never reaches the middleware: it is routed on the outer mux.
func streamIDFromRequest(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/streams/")
	if path == r.URL.Path {
		return ""
	}
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func renderAuthError(w http.ResponseWriter, r *http.Request, err error) {
	controllers.WriteAuthError(w, err)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ListenAndServe serves the API on addr until ctx is cancelled, then
// shuts down gracefully with a bounded drain window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// ListenAndServeMetrics serves the Prometheus /metrics endpoint on addr
// until ctx is cancelled. Intended to run in its own goroutine alongside
// ListenAndServe, on a separate port per spec §6.5.
func (s *Server) ListenAndServeMetrics(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.metricsLis = l

	errCh := make(chan error, 1)
	go func() { errCh <- s.metricsSrv.Serve(l) }()

	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.metricsSrv.Shutdown(cctx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(cctx); err != nil {
		s.logger.Warn("http server shutdown did not complete cleanly", log.Err(err))
	}
	return nil
}

// Close forcibly closes the listeners without draining in-flight requests.
// Intended for tests; production shutdown should go through ListenAndServe's
// ctx cancellation instead.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
	if s.metricsLis != nil {
		_ = s.metricsLis.Close()
	}
}

// tracerAdapter narrows oteltrace.Tracer to the controllers.Tracer
// interface so the controllers package doesn't need to import the OTel
// SDK directly.
type tracerAdapter struct {
	t oteltrace.Tracer
}

func (a tracerAdapter) Start(ctx context.Context, spanName string) (context.Context, controllers.Span) {
	ctx, span := a.t.Start(ctx, spanName)
	return ctx, spanAdapter{span}
}

type spanAdapter struct {
	s oteltrace.Span
}

func (a spanAdapter) End()                  { a.s.End() }
func (a spanAdapter) RecordError(err error) { a.s.RecordError(err) }

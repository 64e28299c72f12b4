// Package controllers implements hematite's HTTP boundary adapters (C4):
// thin handlers that parse the request, validate the stream ID, invoke the
// stream manager, and translate errors to status codes. Authentication runs
// in middleware ahead of them (see internal/auth).
// No business logic lives here; see internal/eventlog and internal/streammgr.
package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Cantido/hematite/internal/apperror"
	"github.com/Cantido/hematite/internal/cloudevents"
	"github.com/Cantido/hematite/internal/eventlog"
	"github.com/Cantido/hematite/internal/metrics"
	"github.com/Cantido/hematite/internal/streammgr"
	"github.com/Cantido/hematite/pkg/log"
)

// maxBodySize bounds a single append request body, independent of any
// one record's maxPayloadSize, since the body carries a whole batch.
const maxBodySize = 64 << 20

// StreamsController implements the four endpoints of spec §6.1 on top of
// the stream manager.
type StreamsController struct {
	mgr     *streammgr.Manager
	metrics *metrics.Metrics
	tracer  Tracer
	logger  log.Logger
}

// Tracer is the subset of trace.Tracer the controller needs, so tests can
// substitute a no-op without importing the OTel SDK.
type Tracer interface {
	Start(ctx context.Context, spanName string) (context.Context, Span)
}

// Span is the subset of trace.Span the controller needs.
type Span interface {
	End()
	RecordError(err error)
}

// NewStreamsController builds a controller over mgr, recording request
// metrics on m and tracing spans via tracer.
func NewStreamsController(mgr *streammgr.Manager, m *metrics.Metrics, tracer Tracer, logger log.Logger) *StreamsController {
	return &StreamsController{mgr: mgr, metrics: m, tracer: tracer, logger: logger}
}

// RegisterRoutes registers the stream endpoints on mux, using Go 1.22's
// method+pattern mux syntax for path variables.
func (c *StreamsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /streams/{stream}/events", c.instrument("append_events", c.handleAppend))
	mux.HandleFunc("GET /streams/{stream}/events/{revision}", c.instrument("get_event", c.handleGetEvent))
	mux.HandleFunc("GET /streams/{stream}/events", c.instrument("list_events", c.handleListEvents))
	mux.HandleFunc("GET /streams/{stream}", c.instrument("stream_info", c.handleStreamInfo))
}

// instrument wraps a handler with the observability cross-cut spec §6.5
// asks for: a trace span, a latency histogram observation, and a
// structured completion log line carrying method/path/stream/outcome.
func (c *StreamsController) instrument(route string, h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := c.tracer.Start(r.Context(), "hematite."+route)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		span.End()
		dur := time.Since(start)
		if c.metrics != nil {
			c.metrics.ObserveRequest(route, statusClass(rec.status), dur)
		}
		c.logger.Info("request completed",
			log.Str("method", r.Method),
			log.Str("path", r.URL.Path),
			log.Str("stream", r.PathValue("stream")),
			log.Int("status", rec.status),
			log.Str("latency", dur.String()),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// handleAppend implements POST /streams/{stream}/events?expected_revision=<n>.
func (c *StreamsController) handleAppend(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := streammgr.StreamIDFromPattern(stream); err != nil {
		writeError(w, err)
		return
	}

	expected, err := parseExpectedRevision(r.URL.Query().Get("expected_revision"))
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, apperror.Wrap(apperror.InvalidRequest, err, "failed to read request body"))
		return
	}
	if len(body) > maxBodySize {
		writeError(w, apperror.New(apperror.InvalidRequest, "request body exceeds %d bytes", maxBodySize))
		return
	}

	events, err := cloudevents.ParseBatch(body)
	if err != nil {
		writeError(w, err)
		return
	}

	payloads := make([][]byte, len(events))
	for i, ev := range events {
		canon, err := cloudevents.Canonicalize(ev)
		if err != nil {
			writeError(w, err)
			return
		}
		payloads[i] = canon
	}

	var newRevision uint64
	err = c.mgr.WithStream(r.Context(), stream, func(l *eventlog.Log) error {
		rev, err := l.Append(r.Context(), payloads, expected)
		newRevision = rev
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"type": "stream",
		"id":   stream,
		"attributes": map[string]any{
			"revision": newRevision,
		},
	})
}

// handleGetEvent implements GET /streams/{stream}/events/{revision}.
func (c *StreamsController) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := streammgr.StreamIDFromPattern(stream); err != nil {
		writeError(w, err)
		return
	}

	revision, err := parseRevisionPathSegment(r.PathValue("revision"))
	if err != nil {
		writeError(w, err)
		return
	}

	var exists bool
	if exists, err = c.mgr.Exists(stream); err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, apperror.New(apperror.NotFound, "stream %q does not exist", stream))
		return
	}

	var payload []byte
	err = c.mgr.WithStream(r.Context(), stream, func(l *eventlog.Log) error {
		payload, err = l.Read(revision)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventResource(stream, revision, payload))
}

// handleListEvents implements GET /streams/{stream}/events?page[offset]=o&page[limit]=l.
func (c *StreamsController) handleListEvents(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := streammgr.StreamIDFromPattern(stream); err != nil {
		writeError(w, err)
		return
	}

	offset, err := parseOffset(r.URL.Query().Get("page[offset]"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit := parseLimit(r.URL.Query().Get("page[limit]"), 100, 1000)

	exists, err := c.mgr.Exists(stream)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, apperror.New(apperror.NotFound, "stream %q does not exist", stream))
		return
	}

	var payloads [][]byte
	var next uint64
	err = c.mgr.WithStream(r.Context(), stream, func(l *eventlog.Log) error {
		payloads, next, err = l.ReadPage(offset, limit)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]any, 0, len(payloads))
	for i, p := range payloads {
		data = append(data, eventResource(stream, offset+uint64(i), p))
	}

	envelope := map[string]any{"data": data}
	if uint64(len(payloads)) == limit {
		links := map[string]any{
			"next": "/streams/" + stream + "/events?page[offset]=" + strconv.FormatUint(next, 10) + "&page[limit]=" + strconv.FormatUint(limit, 10),
		}
		envelope["links"] = links
	}
	writeJSONEnvelope(w, http.StatusOK, envelope)
}

// handleStreamInfo implements GET /streams/{stream}.
func (c *StreamsController) handleStreamInfo(w http.ResponseWriter, r *http.Request) {
	stream := r.PathValue("stream")
	if err := streammgr.StreamIDFromPattern(stream); err != nil {
		writeError(w, err)
		return
	}

	exists, err := c.mgr.Exists(stream)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, apperror.New(apperror.NotFound, "stream %q does not exist", stream))
		return
	}

	var length uint64
	err = c.mgr.WithStream(r.Context(), stream, func(l *eventlog.Log) error {
		length = l.Length()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"type": "stream",
		"id":   stream,
		"attributes": map[string]any{
			"revision": length,
		},
	})
}

// eventResource wraps a canonical CloudEvents JSON payload into a
// JSON:API resource object, per spec §6.1's "event as JSON:API resource
// wrapping the CloudEvent".
func eventResource(stream string, revision uint64, payload []byte) map[string]any {
	var attrs map[string]any
	_ = json.Unmarshal(payload, &attrs)
	return map[string]any{
		"type":       "event",
		"id":         stream + "/" + strconv.FormatUint(revision, 10),
		"attributes": attrs,
	}
}

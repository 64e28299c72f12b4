package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Cantido/hematite/internal/apperror"
)

// writeJSON writes data as a JSON:API-shaped success body under a "data" key.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// writeJSONEnvelope writes a pre-built envelope (e.g. one carrying "links")
// as-is, without re-wrapping it under "data".
func writeJSONEnvelope(w http.ResponseWriter, status int, envelope any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// writeError renders err as a JSON:API error document. Typed *apperror.Error
// values map to their declared HTTP status (spec §7); anything else is a
// 500 with no leaked detail. RevisionMismatch additionally carries
// "expected"/"actual" at the top level for clients that don't want to dig
// into the JSON:API errors array.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	status := http.StatusInternalServerError
	title := "Internal"
	detail := "internal error"

	resp := map[string]any{}

	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
		title = appErr.Kind.String()
		detail = appErr.Error()
		if appErr.Kind == apperror.RevisionMismatch {
			resp["expected"] = appErr.Expected
			resp["actual"] = appErr.Actual
		}
	}

	resp["errors"] = []any{map[string]any{
		"status": strconv.Itoa(status),
		"title":  title,
		"detail": detail,
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteAuthError renders an authentication/authorization failure from
// internal/auth using the same JSON:API error envelope as the stream
// handlers. Exported so the auth.Middleware onError callback in server.go
// can call it without duplicating the rendering logic.
func WriteAuthError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

func parseLimit(s string, def, max uint64) uint64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func parseOffset(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.InvalidRequest, "page[offset] must be a non-negative integer")
	}
	return v, nil
}

func parseRevisionPathSegment(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.InvalidRequest, "revision path segment must be a non-negative integer")
	}
	return v, nil
}

func parseExpectedRevision(s string) (*uint64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, apperror.New(apperror.InvalidRequest, "expected_revision must be a non-negative integer")
	}
	return &v, nil
}

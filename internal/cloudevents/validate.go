package cloudevents

import (
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/Cantido/hematite/internal/apperror"
)

// requiredSpecVersion is the only CloudEvents version hematite accepts.
// Spec §4.1 requires rejecting anything else.
const requiredSpecVersion = "1.0"

// Parse decodes a single structured-mode CloudEvents JSON document and
// validates it per spec §4.1: specversion must be exactly "1.0", and id,
// source, and type must be present and non-empty. Any failure is returned
// as an *apperror.Error with Kind InvalidEvent.
func Parse(raw []byte) (event.Event, error) {
	ev := cloudevents.NewEvent()
	if err := ev.UnmarshalJSON(raw); err != nil {
		return event.Event{}, apperror.Wrap(apperror.InvalidEvent, err, "malformed CloudEvents JSON: %v", err)
	}
	if ev.SpecVersion() != requiredSpecVersion {
		return event.Event{}, apperror.New(apperror.InvalidEvent, "unsupported specversion %q, want %q", ev.SpecVersion(), requiredSpecVersion)
	}
	if ev.ID() == "" {
		return event.Event{}, apperror.New(apperror.InvalidEvent, "missing required field: id")
	}
	if ev.Source() == "" {
		return event.Event{}, apperror.New(apperror.InvalidEvent, "missing required field: source")
	}
	if ev.Type() == "" {
		return event.Event{}, apperror.New(apperror.InvalidEvent, "missing required field: type")
	}
	if err := ev.Validate(); err != nil {
		return event.Event{}, apperror.Wrap(apperror.InvalidEvent, err, "invalid CloudEvent: %v", err)
	}
	return ev, nil
}

// ParseBatch decodes a JSON array of CloudEvents, as posted to
// POST /streams/{stream}/events. The whole batch is rejected atomically:
// the first invalid event aborts the parse with no partial result, matching
// the "whole batch rejected, no state change" contract of spec §4.2/§7.
func ParseBatch(raw []byte) ([]event.Event, error) {
	var docs []rawEvent
	if err := unmarshalArray(raw, &docs); err != nil {
		return nil, apperror.Wrap(apperror.InvalidEvent, err, "request body must be a JSON array of CloudEvents")
	}
	if len(docs) == 0 {
		return nil, apperror.New(apperror.InvalidEvent, "batch must contain at least one event")
	}
	events := make([]event.Event, 0, len(docs))
	for i, d := range docs {
		ev, err := Parse(d.raw)
		if err != nil {
			return nil, apperror.Wrap(apperror.InvalidEvent, err, "event %d: %v", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Canonicalize returns the canonical JSON serialization of a validated
// event, i.e. the bytes that are actually framed into a Record (spec §4.1).
func Canonicalize(ev event.Event) ([]byte, error) {
	b, err := ev.MarshalJSON()
	if err != nil {
		return nil, apperror.Wrap(apperror.InvalidEvent, err, "failed to canonicalize event: %v", err)
	}
	return b, nil
}

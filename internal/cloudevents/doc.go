// Package cloudevents parses and validates CloudEvents v1.0 structured-mode
// JSON documents on top of the upstream cloudevents/sdk-go event type.
//
// Example:
//
//	ev, err := cloudevents.Parse(body)
//	if err != nil {
//	    // err.(*apperror.Error).Kind == apperror.InvalidEvent
//	}
//	canonical, _ := cloudevents.Canonicalize(ev)
package cloudevents

package cloudevents

import "encoding/json"

// rawEvent defers JSON decoding of one array element until Parse validates
// it individually, so a malformed element can be reported by index.
type rawEvent struct {
	raw json.RawMessage
}

func (r *rawEvent) UnmarshalJSON(b []byte) error {
	r.raw = append(r.raw[:0], b...)
	return nil
}

func unmarshalArray(raw []byte, out *[]rawEvent) error {
	return json.Unmarshal(raw, out)
}

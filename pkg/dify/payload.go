package dify

import "encoding/json"

// Payload holds an inputs/outputs/process_data value exactly as it arrived
// on the wire. The API sometimes sends these fields as structured JSON and
// sometimes as a JSON-encoded string that needs one more level of decoding;
// Payload preserves the raw form so the JSON report round-trips unchanged,
// and exposes Map and DecodeNested for consumers that need structure.
type Payload struct {
	value any
}

// NewPayload wraps an already-decoded value. Used by tests and builders.
func NewPayload(v any) Payload {
	return Payload{value: v}
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.value = v
	return nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

// IsZero reports whether the payload carries no value. Lets omitempty-style
// checks work on the wrapper.
func (p Payload) IsZero() bool {
	return p.value == nil
}

// Value returns the wire value as decoded by encoding/json: string, float64,
// bool, nil, []any or map[string]any.
func (p Payload) Value() any {
	return p.value
}

// Map returns the payload as a string-keyed map, applying one level of
// string-to-JSON decoding when the wire value was a JSON-encoded string.
// Returns nil when the payload is absent or not object-shaped.
func (p Payload) Map() map[string]any {
	switch v := p.value.(type) {
	case map[string]any:
		return v
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

// DecodeNested recursively decodes JSON-encoded strings found anywhere in v:
// strings that parse as JSON are replaced by their decoded value and decoded
// again, containers are walked element by element, and everything else is
// returned untouched. The transform is idempotent; applying it to an already
// structured value is a no-op.
func DecodeNested(v any) any {
	switch t := v.(type) {
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(t), &parsed); err != nil {
			return t
		}
		// A string that decodes to itself (e.g. "null" -> nil is fine, but
		// plain words fail above) cannot recurse forever: each successful
		// decode strips one encoding layer.
		return DecodeNested(parsed)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DecodeNested(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DecodeNested(val)
		}
		return out
	default:
		return v
	}
}

// Decoded returns the payload value with all nested JSON-encoded strings
// expanded. Used by the Markdown renderer.
func (p Payload) Decoded() any {
	return DecodeNested(p.value)
}

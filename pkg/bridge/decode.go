package bridge

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Decoder converts raw payload bytes into typed fields. A JSON object payload
// becomes a multi-field mapping with numeric coercion per key; anything else
// becomes a single "value" field derived from the raw bytes.
//
// Decoding never fails: unconvertible values stay strings.
type Decoder struct {
	stringify map[string]struct{}
}

// NewDecoder builds a decoder. Measurements listed in stringifyMeasurements
// keep scalar payloads as strings instead of coercing them to numbers.
func NewDecoder(stringifyMeasurements []string) *Decoder {
	stringify := make(map[string]struct{}, len(stringifyMeasurements))
	for _, m := range stringifyMeasurements {
		if m == "" {
			continue
		}
		stringify[m] = struct{}{}
	}
	return &Decoder{stringify: stringify}
}

// Stringified reports whether scalar payloads for measurementName bypass
// numeric coercion.
func (d *Decoder) Stringified(measurementName string) bool {
	_, ok := d.stringify[measurementName]
	return ok
}

// Decode produces the typed fields for one payload. Only a JSON object takes
// the multi-field path; a successfully decoded JSON array or scalar still
// falls through to the single-value path keyed on the raw bytes, matching
// the established wire behavior.
func (d *Decoder) Decode(measurementName string, payload []byte) map[string]any {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			for k, v := range obj {
				if f, ok := coerceFloat(v); ok {
					obj[k] = f
				}
			}
			return obj
		}
	}

	raw := string(payload)
	if d.Stringified(measurementName) {
		return map[string]any{"value": raw}
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return map[string]any{"value": f}
	}
	return map[string]any{"value": raw}
}

// coerceFloat converts numbers and numeric-looking strings to float64.
// Booleans, nulls and nested structures pass through unchanged.
func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

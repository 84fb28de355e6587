package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeJSONObject(t *testing.T) {
	d := NewDecoder(nil)

	testCases := []struct {
		name    string
		payload string
		want    map[string]any
	}{
		{
			name:    "numeric strings coerced, other strings kept",
			payload: `{"a": "1.5", "b": "x"}`,
			want:    map[string]any{"a": 1.5, "b": "x"},
		},
		{
			name:    "numbers stay numbers",
			payload: `{"temperature": 23.4, "humidity": 61}`,
			want:    map[string]any{"temperature": 23.4, "humidity": 61.0},
		},
		{
			name:    "booleans and nulls pass through",
			payload: `{"open": true, "note": null}`,
			want:    map[string]any{"open": true, "note": nil},
		},
		{
			name:    "nested values pass through",
			payload: `{"pos": [1, 2], "meta": {"v": "1"}}`,
			want:    map[string]any{"pos": []any{1.0, 2.0}, "meta": map[string]any{"v": "1"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.Decode("climate", []byte(tc.payload)))
		})
	}
}

func TestDecodeScalar(t *testing.T) {
	d := NewDecoder([]string{"status"})

	testCases := []struct {
		name        string
		measurement string
		payload     string
		want        map[string]any
	}{
		{
			name:        "numeric scalar coerced",
			measurement: "temperature",
			payload:     "23.4",
			want:        map[string]any{"value": 23.4},
		},
		{
			name:        "stringify wins over numeric coercion",
			measurement: "status",
			payload:     "23.4",
			want:        map[string]any{"value": "23.4"},
		},
		{
			name:        "non-numeric payload stays a string",
			measurement: "door",
			payload:     "open",
			want:        map[string]any{"value": "open"},
		},
		{
			name:        "surrounding whitespace tolerated",
			measurement: "temperature",
			payload:     " 23.4\n",
			want:        map[string]any{"value": 23.4},
		},
		{
			name:        "empty payload",
			measurement: "temperature",
			payload:     "",
			want:        map[string]any{"value": ""},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.Decode(tc.measurement, []byte(tc.payload)))
		})
	}
}

// A successfully decoded JSON array or scalar is still a single-value
// payload: only objects take the multi-field path, and the raw bytes drive
// the stringify/numeric decision.
func TestDecodeNonObjectJSON(t *testing.T) {
	d := NewDecoder([]string{"status"})

	assert.Equal(t, map[string]any{"value": "[1, 2, 3]"},
		d.Decode("acceleration", []byte("[1, 2, 3]")))

	assert.Equal(t, map[string]any{"value": 42.0},
		d.Decode("count", []byte("42")))

	// JSON true decodes fine but is matched against the raw bytes "true",
	// which do not parse as a number.
	assert.Equal(t, map[string]any{"value": "true"},
		d.Decode("door", []byte("true")))

	// A quoted JSON string is not unwrapped either; the quotes are part of
	// the raw payload.
	assert.Equal(t, map[string]any{"value": `"23.4"`},
		d.Decode("temperature", []byte(`"23.4"`)))

	// The stringify set applies to non-object JSON as well.
	assert.Equal(t, map[string]any{"value": "42"},
		d.Decode("status", []byte("42")))
}

func TestDecodeIdempotent(t *testing.T) {
	d := NewDecoder([]string{"status"})
	payload := []byte(`{"a": "1.5", "b": "x", "c": true}`)

	first := d.Decode("climate", payload)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, d.Decode("climate", payload))
	}
}

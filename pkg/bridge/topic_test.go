package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"sensors", "/sensors"},
		{"/sensors", "/sensors"},
		{"sensors/", "/sensors"},
		{"/sensors/", "/sensors"},
		{"/home/sensors/", "/home/sensors"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizePrefix(tc.in), "prefix %q", tc.in)
	}
}

func TestTopicParserParse(t *testing.T) {
	p := NewTopicParser("/sensors", []string{"bedroom", "living-room"})

	testCases := []struct {
		name            string
		topic           string
		wantNode        string
		wantMeasurement string
		wantErr         bool
	}{
		{
			name:            "plain two-segment topic",
			topic:           "/sensors/bedroom/temperature",
			wantNode:        "bedroom",
			wantMeasurement: "temperature",
		},
		{
			name:            "trailing slash",
			topic:           "/sensors/bedroom/temperature/",
			wantNode:        "bedroom",
			wantMeasurement: "temperature",
		},
		{
			name:            "extra trailing segments are ignored",
			topic:           "/sensors/bedroom/temperature/raw/celsius",
			wantNode:        "bedroom",
			wantMeasurement: "temperature",
		},
		{
			name:            "tokens with dash and dot",
			topic:           "/sensors/living-room/co2.ppm",
			wantNode:        "living-room",
			wantMeasurement: "co2.ppm",
		},
		{
			name:    "missing measurement",
			topic:   "/sensors/bedroom",
			wantErr: true,
		},
		{
			name:    "wrong prefix",
			topic:   "/other/bedroom/temperature",
			wantErr: true,
		},
		{
			name:    "empty topic",
			topic:   "",
			wantErr: true,
		},
		{
			name:    "token with illegal character",
			topic:   "/sensors/bed room/temperature",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := p.Parse(tc.topic)
			if tc.wantErr {
				var parseErr *ParseError
				require.Error(t, err)
				require.True(t, errors.As(err, &parseErr))
				assert.Equal(t, tc.topic, parseErr.Topic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantNode, id.Node)
			assert.Equal(t, tc.wantMeasurement, id.Measurement)
		})
	}
}

func TestTopicParserEmptyPrefix(t *testing.T) {
	p := NewTopicParser("", []string{"node1"})

	id, err := p.Parse("/node1/humidity")
	require.NoError(t, err)
	assert.Equal(t, "node1", id.Node)
	assert.Equal(t, "humidity", id.Measurement)
}

func TestTopicParserUnknownNodeStillParses(t *testing.T) {
	p := NewTopicParser("/sensors", []string{"bedroom"})

	id, err := p.Parse("/sensors/garage/temperature")
	require.NoError(t, err)
	assert.Equal(t, "garage", id.Node)
	assert.False(t, p.KnownNode("garage"))
	assert.True(t, p.KnownNode("bedroom"))
}

func TestSubscriptionTopics(t *testing.T) {
	p := NewTopicParser("sensors/", []string{"a", "b"})

	topics := p.SubscriptionTopics([]string{"a", "b"})
	assert.Equal(t, []string{"/sensors/a/#", "/sensors/b/#"}, topics)
}

package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPoint(t *testing.T) {
	p := NewPoint("bedroom", "temperature", map[string]any{"value": 23.4})

	assert.Equal(t, "temperature", p.Measurement)
	assert.Equal(t, "bedroom", p.Node())
	assert.Equal(t, map[string]string{NodeTag: "bedroom"}, p.Tags)
	require.NoError(t, p.Validate())
}

func TestPointValidateRejectsEmptyFields(t *testing.T) {
	assert.ErrorIs(t, NewPoint("n", "m", nil).Validate(), ErrNoFields)
	assert.ErrorIs(t, NewPoint("n", "m", map[string]any{}).Validate(), ErrNoFields)
}

func TestSinkRegistry(t *testing.T) {
	RegisterSink("test-connector", func(logger *zap.Logger) Sink {
		return &fakeSink{name: "test-connector"}
	})

	sink, err := NewSink("test-connector", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "test-connector", sinkLabel(sink))

	_, err = NewSink("no-such-connector", zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownConnector)
}

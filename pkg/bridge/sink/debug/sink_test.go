package debug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

func TestStoreLogsPoint(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(zap.New(core))

	require.NoError(t, s.Connect(nil))

	p := bridge.NewPoint("bedroom", "temperature", map[string]any{"value": 23.4})
	require.NoError(t, s.Store(context.Background(), p))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "temperature", fields["measurement"])
	assert.Equal(t, "bedroom", fields["node"])
}

func TestStoreRejectsEmptyFields(t *testing.T) {
	s := New(zap.NewNop())
	err := s.Store(context.Background(), bridge.NewPoint("n", "m", nil))
	assert.ErrorIs(t, err, bridge.ErrNoFields)
}

package debug

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

// Sink logs every point instead of persisting it.
type Sink struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Name() string {
	return bridge.ConnectorDebug
}

func (s *Sink) Connect(_ json.RawMessage) error {
	return nil
}

func (s *Sink) Store(_ context.Context, p bridge.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.logger.Info("point",
		zap.String("measurement", p.Measurement),
		zap.String("node", p.Node()),
		zap.Any("fields", p.Fields))
	return nil
}

func (s *Sink) Close() error {
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorDebug, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

package bridge

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// NodeTag is the tag key carrying the originating device name on every point.
const NodeTag = "sensor_node"

var (
	// ErrNoFields is returned by sinks handed a point without any decoded fields.
	ErrNoFields = errors.New("point has no fields")

	// ErrUnknownConnector is returned when no sink connector is registered
	// under the requested name.
	ErrUnknownConnector = errors.New("unknown sink connector")
)

// Point is a single tagged, multi-field record destined for a sink. The
// timestamp is left to the storage backend; the bridge never assigns one.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
}

// NewPoint builds a point tagged with the originating node.
func NewPoint(nodeName, measurementName string, fields map[string]any) Point {
	return Point{
		Measurement: measurementName,
		Tags:        map[string]string{NodeTag: nodeName},
		Fields:      fields,
	}
}

// Node returns the originating device name.
func (p Point) Node() string {
	return p.Tags[NodeTag]
}

// Validate rejects points a sink must never write.
func (p Point) Validate() error {
	if len(p.Fields) == 0 {
		return ErrNoFields
	}
	return nil
}

// A Sink persists decoded telemetry points.
type Sink interface {
	// Connect initializes the sink with connector-specific settings.
	Connect(config json.RawMessage) error

	// Store writes one point. Transport failures are logged at the sink
	// boundary; the returned error is informational and callers must not
	// treat it as fatal.
	Store(ctx context.Context, p Point) error

	Close() error
}

// Predefined sink connectors
const (
	ConnectorInfluxDB   = "influxdb"
	ConnectorClickHouse = "clickhouse"
	ConnectorNATS       = "nats"
	ConnectorKafka      = "kafka"
	ConnectorPostgres   = "postgres"
	ConnectorDebug      = "debug"
)

// Factory constructs an unconnected sink using the given logger.
type Factory func(logger *zap.Logger) Sink

var connectors = make(map[string]Factory)

// RegisterSink adds a sink connector to the registry. The name parameter is
// used as a key to identify the connector type.
func RegisterSink(name string, f Factory) {
	connectors[name] = f
}

// NewSink instantiates a registered sink connector.
func NewSink(name string, logger *zap.Logger) (Sink, error) {
	f, ok := connectors[name]
	if !ok {
		return nil, ErrUnknownConnector
	}
	return f(logger), nil
}

// Package clickhouse writes telemetry points into a ClickHouse table.
package clickhouse

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

const createTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	received_at DateTime DEFAULT now(),
	measurement String,
	sensor_node String,
	fields      String
) ENGINE = MergeTree()
ORDER BY (measurement, sensor_node, received_at)`

type Config struct {
	Addr     []string `json:"addr"`
	Database string   `json:"database"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Table    string   `json:"table"`
}

// Sink appends one row per point; fields are stored JSON-encoded and the
// row timestamp defaults to the server's now().
type Sink struct {
	conn   driver.Conn
	config Config
	logger *zap.Logger
}

func New(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Name() string {
	return bridge.ConnectorClickHouse
}

func (s *Sink) Connect(config json.RawMessage) error {
	var cfg Config
	if config != nil {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse ClickHouse config: %w", err)
		}
	}

	if len(cfg.Addr) == 0 {
		cfg.Addr = []string{cmp.Or(os.Getenv("FORWARDER_CLICKHOUSE_ADDR"), "localhost:9000")}
	}
	cfg.Database = cmp.Or(cfg.Database, os.Getenv("FORWARDER_CLICKHOUSE_DATABASE"), "default")
	cfg.Username = cmp.Or(cfg.Username, os.Getenv("FORWARDER_CLICKHOUSE_USERNAME"), "default")
	cfg.Table = cmp.Or(cfg.Table, "telemetry")

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf(createTableDDL, cfg.Table)); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", cfg.Table, err)
	}

	s.conn = conn
	s.config = cfg
	return nil
}

func (s *Sink) Store(ctx context.Context, p bridge.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	sql := fmt.Sprintf("INSERT INTO %s (measurement, sensor_node, fields) VALUES (?, ?, ?)", s.config.Table)
	if err := s.conn.Exec(ctx, sql, p.Measurement, p.Node(), string(fieldsJSON)); err != nil {
		s.logger.Error("ClickHouse insert failed",
			zap.String("measurement", p.Measurement),
			zap.String("node", p.Node()),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorClickHouse, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

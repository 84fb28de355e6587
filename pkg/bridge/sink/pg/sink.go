// Package pg writes telemetry points into a Postgres (or Timescale) table.
package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

const createTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id          UUID PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	sensor_node TEXT NOT NULL,
	measurement TEXT NOT NULL,
	fields      JSONB NOT NULL
)`

type Config struct {
	ConnString string `json:"connString"`
	Table      string `json:"table"`
}

// Sink inserts one row per point. The row timestamp defaults to the
// database's now().
type Sink struct {
	pool   *pgxpool.Pool
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
	return bridge.ConnectorPostgres
}

func (s *Sink) Connect(config json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal Postgres config: %w", err)
	}
	if cfg.ConnString == "" {
		return fmt.Errorf("postgres connString is required")
	}
	if cfg.Table == "" {
		cfg.Table = "telemetry"
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.ConnString)
	if err != nil {
		return fmt.Errorf("failed to create Postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping Postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createTableDDL, cfg.Table)); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ensure table %s: %w", cfg.Table, err)
	}

	s.pool = pool
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

	sql := fmt.Sprintf(
		"INSERT INTO %s (id, sensor_node, measurement, fields) VALUES ($1, $2, $3, $4)",
		s.config.Table)
	if _, err := s.pool.Exec(ctx, sql, uuid.New(), p.Node(), p.Measurement, fieldsJSON); err != nil {
		s.logger.Error("Postgres insert failed",
			zap.String("measurement", p.Measurement),
			zap.String("node", p.Node()),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Sink) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorPostgres, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

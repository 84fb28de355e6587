// Package influx adapts the bridge sink contract to the InfluxDB write API.
package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

type Config struct {
	// URL overrides Host/Port when set.
	URL      string `json:"url,omitempty"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database"`
	Token    string `json:"token,omitempty"`
	Org      string `json:"org,omitempty"`
}

func (c Config) serverURL() string {
	if c.URL != "" {
		return c.URL
	}
	port := c.Port
	if port == 0 {
		port = 8086
	}
	return fmt.Sprintf("http://%s:%d", c.Host, port)
}

// authToken returns the API token, falling back to v1 compatibility
// username:password auth when no token is configured.
func (c Config) authToken() string {
	if c.Token != "" {
		return c.Token
	}
	return fmt.Sprintf("%s:%s", c.Username, c.Password)
}

// Sink writes one point per Store call. The point carries no timestamp; the
// server assigns the write time.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
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
	return bridge.ConnectorInfluxDB
}

func (s *Sink) Connect(config json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal InfluxDB config: %w", err)
	}

	url := cfg.serverURL()
	client := influxdb2.NewClient(url, cfg.authToken())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping InfluxDB at %s: %w", url, err)
	}

	s.client = client
	s.write = client.WriteAPIBlocking(cfg.Org, cfg.Database)
	s.config = cfg
	return nil
}

func (s *Sink) Store(ctx context.Context, p bridge.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}

	pt := write.NewPoint(p.Measurement, p.Tags, p.Fields, time.Time{})
	s.logger.Debug("writing InfluxDB point",
		zap.String("measurement", p.Measurement),
		zap.String("node", p.Node()),
		zap.Any("fields", p.Fields))

	if err := s.write.WritePoint(ctx, pt); err != nil {
		s.logger.Error("InfluxDB write failed",
			zap.String("measurement", p.Measurement),
			zap.String("node", p.Node()),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorInfluxDB, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

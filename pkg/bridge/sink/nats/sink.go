// Package nats republishes decoded telemetry points on NATS subjects.
package nats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

var errConnNotInitialized = errors.New("NATS connection not initialized")

type Config struct {
	Servers       []string `json:"servers"`
	SubjectPrefix string   `json:"subjectPrefix"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
}

// message is the wire form of a republished point.
type message struct {
	Node        string         `json:"node"`
	Measurement string         `json:"measurement"`
	Fields      map[string]any `json:"fields"`
}

// Sink publishes each point to <prefix>.<node>.<measurement>.
type Sink struct {
	nc     *nats.Conn
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
	return bridge.ConnectorNATS
}

func (s *Sink) Connect(config json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("unmarshal NATS config: %w", err)
	}

	if len(cfg.Servers) == 0 {
		cfg.Servers = []string{nats.DefaultURL}
	}
	cfg.SubjectPrefix = cmp.Or(cfg.SubjectPrefix, "telemetry")

	opts := []nats.Option{
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	var err error
	for _, server := range cfg.Servers {
		s.nc, err = nats.Connect(server, opts...)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("connect to NATS server: %w", err)
	}

	s.config = cfg
	return nil
}

func (s *Sink) Store(_ context.Context, p bridge.Point) error {
	if s.nc == nil {
		return errConnNotInitialized
	}
	if err := p.Validate(); err != nil {
		return err
	}

	subject := fmt.Sprintf("%s.%s.%s", s.config.SubjectPrefix, p.Node(), p.Measurement)
	data, err := json.Marshal(message{
		Node:        p.Node(),
		Measurement: p.Measurement,
		Fields:      p.Fields,
	})
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}

	if err := s.nc.Publish(subject, data); err != nil {
		s.logger.Error("NATS publish failed",
			zap.String("subject", subject),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Sink) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorNATS, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

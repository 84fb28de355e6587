// Package kafka produces telemetry points to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
)

// Config represents Kafka-specific configuration
type Config struct {
	Brokers     []string `json:"brokers"`
	TopicPrefix string   `json:"topicPrefix"`
	Version     string   `json:"version,omitempty"`
	SASL        *SASL    `json:"sasl,omitempty"`
}

// SASL represents SASL authentication configuration
type SASL struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Algorithm string `json:"algorithm"`
	Enable    bool   `json:"enable"`
}

// Sink produces one message per point to <prefix>.<measurement>, keyed by
// node so per-node ordering survives partitioning.
type Sink struct {
	producer sarama.SyncProducer
	config   Config
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

func (s *Sink) Name() string {
	return bridge.ConnectorKafka
}

func (s *Sink) Connect(config json.RawMessage) error {
	var cfg Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal Kafka config: %w", err)
	}

	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "telemetry"
	}
	if cfg.Version == "" {
		cfg.Version = "2.1.1"
	}

	saramaConfig := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return fmt.Errorf("invalid Kafka version: %w", err)
	}
	saramaConfig.Version = version

	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = time.Second
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	if cfg.SASL != nil && cfg.SASL.Enable {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = cfg.SASL.Username
		saramaConfig.Net.SASL.Password = cfg.SASL.Password

		switch cfg.SASL.Algorithm {
		case "sha256":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "sha512":
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		default:
			saramaConfig.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	s.producer = producer
	s.config = cfg
	return nil
}

func (s *Sink) Store(_ context.Context, p bridge.Point) error {
	if s.producer == nil {
		return fmt.Errorf("Kafka producer not initialized")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(map[string]any{
		"node":        p.Node(),
		"measurement": p.Measurement,
		"fields":      p.Fields,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal point: %w", err)
	}

	topic := fmt.Sprintf("%s.%s", s.config.TopicPrefix, p.Measurement)
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(p.Node()),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		s.logger.Error("Kafka produce failed",
			zap.String("topic", topic),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Sink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

func init() {
	bridge.RegisterSink(bridge.ConnectorKafka, func(logger *zap.Logger) bridge.Sink {
		return New(logger)
	})
}

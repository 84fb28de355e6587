package bridge

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/metrics"
)

// Subscriber is the transport capability the source consumes: connect once,
// subscribe to topic filters, deliver (topic, payload) events.
type Subscriber interface {
	Connect() error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Disconnect()
}

// SourceConfig carries the already-validated values the source needs.
type SourceConfig struct {
	TopicPrefix           string
	NodeNames             []string
	StringifyMeasurements []string

	// ConnectRetries bounds the initial connect backoff. Zero means the
	// default of 5 attempts.
	ConnectRetries uint64
}

// Source owns the inbound subscription and the dispatch loop. Events are
// processed one at a time in arrival order; every registered sink sees every
// decoded point, in registration order.
type Source struct {
	sub     Subscriber
	parser  *TopicParser
	decoder *Decoder
	cfg     SourceConfig
	sinks   []Sink
	logger  *zap.Logger
}

// NewSource wires a source from its transport, configuration and logger.
func NewSource(sub Subscriber, cfg SourceConfig, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		sub:     sub,
		parser:  NewTopicParser(cfg.TopicPrefix, cfg.NodeNames),
		decoder: NewDecoder(cfg.StringifyMeasurements),
		cfg:     cfg,
		logger:  logger,
	}
}

// Register appends a sink to the dispatch list. Registration order is
// preserved and duplicates are permitted. Must not be called after Start.
func (s *Source) Register(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Sinks returns a copy of the registered sink list.
func (s *Source) Sinks() []Sink {
	out := make([]Sink, len(s.sinks))
	copy(out, s.sinks)
	return out
}

// Start connects the transport, subscribes to one wildcard filter per
// configured node and blocks until ctx is canceled. The initial connect is
// retried with exponential backoff; exhausting the retries is fatal.
func (s *Source) Start(ctx context.Context) error {
	retries := s.cfg.ConnectRetries
	if retries == 0 {
		retries = 5
	}

	connect := func() error {
		if err := s.sub.Connect(); err != nil {
			s.logger.Warn("broker connect failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	for _, topic := range s.parser.SubscriptionTopics(s.cfg.NodeNames) {
		s.logger.Info("subscribing", zap.String("topic", topic))
		if err := s.sub.Subscribe(topic, func(topic string, payload []byte) {
			s.HandleMessage(ctx, topic, payload)
		}); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
	}

	<-ctx.Done()
	s.sub.Disconnect()
	return nil
}

// HandleMessage runs one raw event through parse, decode and dispatch.
// All per-message errors are local: a malformed topic drops the message, a
// failing sink never blocks the remaining sinks.
func (s *Source) HandleMessage(ctx context.Context, topic string, payload []byte) {
	s.logger.Debug("received message",
		zap.String("topic", topic),
		zap.ByteString("payload", payload))

	id, err := s.parser.Parse(topic)
	if err != nil {
		metrics.ParseErrors.Inc()
		s.logger.Warn("could not extract node or measurement from topic",
			zap.String("topic", topic))
		return
	}
	if !s.parser.KnownNode(id.Node) {
		metrics.UnknownNodeMessages.WithLabelValues(id.Node).Inc()
		s.logger.Warn("message from node outside the configured list",
			zap.String("node", id.Node),
			zap.Strings("configured", s.cfg.NodeNames))
	}
	metrics.ReceivedMessages.WithLabelValues(id.Node).Inc()

	fields := s.decoder.Decode(id.Measurement, payload)
	point := NewPoint(id.Node, id.Measurement, fields)

	timer := prometheus.NewTimer(metrics.DispatchDuration)
	defer timer.ObserveDuration()

	for _, sink := range s.sinks {
		if err := sink.Store(ctx, point); err != nil {
			metrics.SinkWriteErrors.WithLabelValues(sinkLabel(sink)).Inc()
			s.logger.Warn("sink write failed",
				zap.String("sink", sinkLabel(sink)),
				zap.String("measurement", point.Measurement),
				zap.Error(err))
			continue
		}
		metrics.ForwardedPoints.WithLabelValues(sinkLabel(sink)).Inc()
	}
}

func sinkLabel(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge"
	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/mqtt"
	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/influx"
	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/config"
	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/metrics"

	// Register built-in sink connectors
	_ "github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/clickhouse"
	_ "github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/debug"
	_ "github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/kafka"
	_ "github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/nats"
	_ "github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/sink/pg"
)

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Run the MQTT to InfluxDB forwarder",
	Long:  `Subscribe to the configured per-node topics and forward decoded sensor data to all configured sinks.`,
	RunE:  runForward,
}

func runForward(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.ResolveSecrets(); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	doneChan := make(chan struct{})

	var wg sync.WaitGroup

	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	sinks, err := setupSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("sink close failed", zap.Error(err))
			}
		}
	}()

	client, err := mqtt.NewClient(&mqtt.Options{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		ClientID:  cfg.MQTT.ClientID,
		Transport: cfg.MQTT.Transport,
		TLS:       cfg.MQTT.TLS,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create MQTT client: %w", err)
	}

	source := bridge.NewSource(client, bridge.SourceConfig{
		TopicPrefix:           cfg.TopicPrefix,
		NodeNames:             cfg.Nodes,
		StringifyMeasurements: cfg.StringifyMeasurements,
	}, logger)
	for _, s := range sinks {
		source.Register(s)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	case err := <-errChan:
		log.Printf("Forwarder error: %v", err)
		cancel()
	}

	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Println("Shutdown complete")
	case <-time.After(10 * time.Second):
		log.Println("Shutdown timed out after 10 seconds")
	}

	return nil
}

// setupSinks connects the primary InfluxDB sink followed by any extra sinks
// from the config file, in declaration order. A sink that cannot connect is
// fatal at startup.
func setupSinks(cfg *config.Config, logger *zap.Logger) ([]bridge.Sink, error) {
	influxSink := influx.New(logger)
	influxCfg, err := json.Marshal(influx.Config{
		Host:     cfg.InfluxDB.Host,
		Port:     cfg.InfluxDB.Port,
		Username: cfg.InfluxDB.Username,
		Password: cfg.InfluxDB.Password,
		Database: cfg.InfluxDB.Database,
		Token:    cfg.InfluxDB.Token,
		Org:      cfg.InfluxDB.Org,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal InfluxDB config: %w", err)
	}
	if err := influxSink.Connect(influxCfg); err != nil {
		return nil, fmt.Errorf("failed to connect InfluxDB sink: %w", err)
	}

	sinks := []bridge.Sink{influxSink}
	for _, sc := range cfg.Sinks {
		sink, err := bridge.NewSink(sc.Connector, logger)
		if err != nil {
			return nil, fmt.Errorf("sink %q: %w", sc.Name, err)
		}
		raw, err := json.Marshal(sc.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config for sink %q: %w", sc.Name, err)
		}
		if err := sink.Connect(raw); err != nil {
			return nil, fmt.Errorf("failed to connect sink %q: %w", sc.Name, err)
		}
		logger.Info("connected sink",
			zap.String("name", sc.Name),
			zap.String("connector", sc.Connector))
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func init() {
	f := forwardCmd.Flags()
	f.String("mqtt-host", "", "MQTT host")
	f.Int("mqtt-port", 1883, "MQTT port")
	f.String("mqtt-user", "", "MQTT username")
	f.String("mqtt-pass-file", "", "MQTT user password file")
	f.String("mqtt-client-id", "", "MQTT client id")
	f.String("mqtt-transport", "tcp", "MQTT transport (tcp, ssl, ws, wss)")
	f.String("mqtt-topic-prefix", "", "MQTT topic prefix")
	f.String("influx-host", "", "InfluxDB host")
	f.Int("influx-port", 8086, "InfluxDB port")
	f.String("influx-user", "", "InfluxDB username")
	f.String("influx-pass-file", "", "InfluxDB password file")
	f.String("influx-db", "", "InfluxDB database")
	f.StringArray("node-name", nil, "Sensor node name (repeatable)")
	f.StringArray("stringify-values-for-measurements", nil, "Keep scalar values of the given measurement as strings (repeatable)")
	f.Bool("metrics", false, "Enable Prometheus metrics server")
	f.String("metrics-addr", ":9100", "Prometheus metrics server address")
	f.Bool("verbose", false, "Enable verbose output")
}

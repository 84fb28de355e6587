// Package mqtt wraps the paho client behind the subscriber capability the
// bridge source consumes.
package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client represents an MQTT client delivering raw (topic, payload) events.
type Client struct {
	opts   *mqtt.ClientOptions
	client mqtt.Client
	logger *zap.Logger
}

// NewClient creates a new MQTT client with the given options and logger.
func NewClient(o *Options, logger ...*zap.Logger) (*Client, error) {
	pahoOpts, err := convertToPahoOptions(o)
	if err != nil {
		return nil, err
	}

	client := &Client{opts: pahoOpts}
	if len(logger) > 0 {
		client.logger = logger[0]
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	return client, nil
}

// Connect establishes a connection to the MQTT broker.
func (c *Client) Connect() error {
	c.client = mqtt.NewClient(c.opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("broker connection error: %w", token.Error())
	}
	c.logger.Info("connected to MQTT broker", zap.Strings("servers", brokerStrings(c.opts)))
	return nil
}

// Subscribe registers a handler for messages matching the topic filter.
// Handlers run on paho's single ordered delivery routine, so events for one
// subscription are processed strictly in arrival order.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Error("subscribe error", zap.Error(err), zap.String("topic", topic))
		return fmt.Errorf("subscribe error: %w", err)
	}
	c.logger.Debug("subscribed to topic", zap.String("topic", topic))
	return nil
}

// Disconnect closes the connection to the MQTT broker.
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.logger.Info("disconnected from MQTT broker")
}

func convertToPahoOptions(o *Options) (*mqtt.ClientOptions, error) {
	pahoOpts := mqtt.NewClientOptions()
	pahoOpts.AddBroker(o.BrokerURL())

	clientID := o.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("forwarder-%s", uuid.NewString()[:8])
	}
	pahoOpts.SetClientID(clientID)

	if o.Username != "" {
		pahoOpts.SetUsername(o.Username)
		pahoOpts.SetPassword(o.Password)
	}
	if o.TLS != nil {
		tlsConfig, err := createTLSConfig(o.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		pahoOpts.SetTLSConfig(tlsConfig)
	}
	if o.KeepAlive > 0 {
		pahoOpts.SetKeepAlive(o.KeepAlive)
	}
	if o.ConnectTimeout > 0 {
		pahoOpts.SetConnectTimeout(o.ConnectTimeout)
	} else {
		pahoOpts.SetConnectTimeout(10 * time.Second)
	}

	// One in-flight handler at a time keeps per-node ordering intact.
	pahoOpts.SetOrderMatters(true)
	pahoOpts.SetAutoReconnect(true)
	pahoOpts.SetResumeSubs(true)

	return pahoOpts, nil
}

func brokerStrings(opts *mqtt.ClientOptions) []string {
	brokers := make([]string, len(opts.Servers))
	for i, server := range opts.Servers {
		brokers[i] = server.String()
	}
	return brokers
}

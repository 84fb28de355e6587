package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/KoffeinKaio/mqtt-to-influxdb-forwarder/pkg/bridge/mqtt"
)

// Version is the forwarder release version.
const Version = "0.2.0"

// Config holds application-wide configuration
type Config struct {
	MQTT                  MQTTConfig     `mapstructure:"mqtt"`
	InfluxDB              InfluxDBConfig `mapstructure:"influxdb"`
	Sinks                 []SinkConfig   `mapstructure:"sinks"`
	Nodes                 []string       `mapstructure:"nodes"`
	StringifyMeasurements []string       `mapstructure:"stringifyMeasurements"`
	TopicPrefix           string         `mapstructure:"topicPrefix"`
	Metrics               MetricsConfig  `mapstructure:"metrics"`
	Verbose               bool           `mapstructure:"verbose"`
}

type MQTTConfig struct {
	Host         string           `mapstructure:"host"`
	Port         int              `mapstructure:"port"`
	Username     string           `mapstructure:"username"`
	Password     string           `mapstructure:"password"`
	PasswordFile string           `mapstructure:"passwordFile"`
	ClientID     string           `mapstructure:"clientID"`
	Transport    string           `mapstructure:"transport"`
	TLS          *mqtt.TLSOptions `mapstructure:"tls"`
}

type InfluxDBConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"passwordFile"`
	Database     string `mapstructure:"database"`
	// Token and Org select the v2 write API; when Token is empty the sink
	// falls back to username:password compatibility auth.
	Token string `mapstructure:"token"`
	Org   string `mapstructure:"org"`
}

// SinkConfig declares one additional sink beyond the primary InfluxDB one.
// Connector must match a registered sink connector; Config carries the
// connector-specific settings.
type SinkConfig struct {
	Name      string         `mapstructure:"name"`
	Connector string         `mapstructure:"connector"`
	Config    map[string]any `mapstructure:"config"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// flagBindings maps config keys to the CLI flags that override them.
var flagBindings = map[string]string{
	"mqtt.host":             "mqtt-host",
	"mqtt.port":             "mqtt-port",
	"mqtt.username":         "mqtt-user",
	"mqtt.passwordFile":     "mqtt-pass-file",
	"mqtt.clientID":         "mqtt-client-id",
	"mqtt.transport":        "mqtt-transport",
	"topicPrefix":           "mqtt-topic-prefix",
	"influxdb.host":         "influx-host",
	"influxdb.port":         "influx-port",
	"influxdb.username":     "influx-user",
	"influxdb.passwordFile": "influx-pass-file",
	"influxdb.database":     "influx-db",
	"nodes":                 "node-name",
	"stringifyMeasurements": "stringify-values-for-measurements",
	"metrics.enabled":       "metrics",
	"metrics.addr":          "metrics-addr",
	"verbose":               "verbose",
}

// Load reads config from file, environment and the given command-line flags,
// in ascending precedence (flags win).
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("forwarder")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("FORWARDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.transport", "tcp")
	v.SetDefault("influxdb.port", 8086)
	v.SetDefault("metrics.addr", ":9100")

	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// ResolveSecrets loads passwords from their configured files. File contents
// are trimmed of surrounding whitespace. Missing files are fatal.
func (c *Config) ResolveSecrets() error {
	if c.MQTT.PasswordFile != "" {
		secret, err := readSecretFile(c.MQTT.PasswordFile)
		if err != nil {
			return fmt.Errorf("mqtt password: %w", err)
		}
		c.MQTT.Password = secret
	}
	if c.InfluxDB.PasswordFile != "" {
		secret, err := readSecretFile(c.InfluxDB.PasswordFile)
		if err != nil {
			return fmt.Errorf("influxdb password: %w", err)
		}
		c.InfluxDB.Password = secret
	}
	return nil
}

// Validate checks the configuration the core consumes as already-validated.
func (c *Config) Validate() error {
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt host is required")
	}
	if c.InfluxDB.Host == "" {
		return fmt.Errorf("influxdb host is required")
	}
	if c.InfluxDB.Database == "" {
		return fmt.Errorf("influxdb database is required")
	}
	if c.InfluxDB.Token == "" && c.InfluxDB.Username == "" {
		return fmt.Errorf("influxdb credentials are required (token or username)")
	}
	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node name is required")
	}
	for _, s := range c.Sinks {
		if s.Connector == "" {
			return fmt.Errorf("sink %q needs a connector", s.Name)
		}
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

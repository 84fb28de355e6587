package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forwarder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  host: broker.local
  port: 8883
  transport: ssl
influxdb:
  host: influx.local
  username: forwarder
  database: sensors
nodes:
  - bedroom
  - garage
stringifyMeasurements:
  - status
topicPrefix: /sensors
sinks:
  - name: audit
    connector: debug
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "ssl", cfg.MQTT.Transport)
	assert.Equal(t, "influx.local", cfg.InfluxDB.Host)
	assert.Equal(t, 8086, cfg.InfluxDB.Port, "default port applies")
	assert.Equal(t, []string{"bedroom", "garage"}, cfg.Nodes)
	assert.Equal(t, []string{"status"}, cfg.StringifyMeasurements)
	assert.Equal(t, "/sensors", cfg.TopicPrefix)
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "debug", cfg.Sinks[0].Connector)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  host: broker.local
`)
	t.Setenv("FORWARDER_MQTT_HOST", "other.local")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "other.local", cfg.MQTT.Host)
}

func TestResolveSecrets(t *testing.T) {
	dir := t.TempDir()
	mqttPass := filepath.Join(dir, "mqtt-pass")
	influxPass := filepath.Join(dir, "influx-pass")
	require.NoError(t, os.WriteFile(mqttPass, []byte("hunter2\n"), 0o600))
	require.NoError(t, os.WriteFile(influxPass, []byte("  s3cret  \n"), 0o600))

	cfg := &Config{
		MQTT:     MQTTConfig{PasswordFile: mqttPass},
		InfluxDB: InfluxDBConfig{PasswordFile: influxPass},
	}

	require.NoError(t, cfg.ResolveSecrets())
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
	assert.Equal(t, "s3cret", cfg.InfluxDB.Password)
}

func TestResolveSecretsMissingFile(t *testing.T) {
	cfg := &Config{MQTT: MQTTConfig{PasswordFile: "/does/not/exist"}}
	assert.Error(t, cfg.ResolveSecrets())
}

func TestValidate(t *testing.T) {
	valid := Config{
		MQTT:     MQTTConfig{Host: "broker.local"},
		InfluxDB: InfluxDBConfig{Host: "influx.local", Username: "u", Database: "sensors"},
		Nodes:    []string{"bedroom"},
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing mqtt host", func(c *Config) { c.MQTT.Host = "" }},
		{"missing influx host", func(c *Config) { c.InfluxDB.Host = "" }},
		{"missing influx database", func(c *Config) { c.InfluxDB.Database = "" }},
		{"missing influx credentials", func(c *Config) { c.InfluxDB.Username = "" }},
		{"no nodes", func(c *Config) { c.Nodes = nil }},
		{"sink without connector", func(c *Config) { c.Sinks = []SinkConfig{{Name: "x"}} }},
	}

	require.NoError(t, valid.Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTokenReplacesUsername(t *testing.T) {
	cfg := Config{
		MQTT:     MQTTConfig{Host: "broker.local"},
		InfluxDB: InfluxDBConfig{Host: "influx.local", Token: "tok", Database: "sensors"},
		Nodes:    []string{"bedroom"},
	}
	assert.NoError(t, cfg.Validate())
}

// Package bridge translates MQTT sensor telemetry into timestamped points
// and fans them out to one or more registered sinks.
package bridge

// topic: <prefix>/NODE/MEASUREMENT[/ignored/...]
// payload: JSON object (multi-field) or raw scalar (single "value" field)
//
// Example:
// mosquitto_pub -t /sensors/bedroom/temperature -m '23.4'
// mosquitto_pub -t /sensors/bedroom/climate -m '{"temperature": "23.4", "humidity": 61}'
//
// A JSON object payload becomes one point with a field per key; anything
// else becomes a single-field point keyed "value".

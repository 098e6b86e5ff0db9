package types

import "maps"

// ReadingSet is one sampling cycle's snapshot: quantity name -> value rounded to
// one decimal place. It marshals to the flat JSON object ThingsBoard accepts as
// telemetry, e.g. {"temperature":25.3,"humidity":64.1}.
type ReadingSet map[string]float64

// Clone returns an independent copy.
func (r ReadingSet) Clone() ReadingSet {
	return maps.Clone(r)
}

// WithField returns the readings merged with one extra string field, as a new
// map suitable for JSON encoding. The receiver is not modified.
func (r ReadingSet) WithField(key, value string) map[string]any {
	out := make(map[string]any, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[key] = value
	return out
}

// Channel identifies one delivery transport.
type Channel string

const (
	ChannelMQTTTelemetry  Channel = "mqtt_telemetry"
	ChannelHTTPTelemetry  Channel = "http_telemetry"
	ChannelHTTPAttributes Channel = "http_attributes"
	ChannelBackend        Channel = "backend"
)

// Channels lists every channel in dispatch order.
var Channels = []Channel{
	ChannelMQTTTelemetry,
	ChannelHTTPTelemetry,
	ChannelHTTPAttributes,
	ChannelBackend,
}

// Outcome is the result of one delivery attempt on one channel.
// Err carries the diagnostic for a failed attempt and is nil when OK.
type Outcome struct {
	Channel Channel
	OK      bool
	Err     error
}

// ErrString returns the diagnostic as a string, empty on success.
func (o Outcome) ErrString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

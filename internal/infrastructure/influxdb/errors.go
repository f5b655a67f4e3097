package influxdb

import "errors"

// Sentinel errors for the telemetry client. Callers branch with
// errors.Is; anything else arrives wrapped around one of these.
var (
	// ErrDisabled means the influxdb section of config.yaml has
	// enabled: false. Callers treat it as "run without telemetry",
	// not as a fault.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed covers a failed ping or an unhealthy server
	// during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close. Writes
	// never return it; they drop silently when disconnected, and batch
	// failures surface through the SetOnError callback.
	ErrNotConnected = errors.New("influxdb: not connected")
)

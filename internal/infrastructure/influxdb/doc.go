// Package influxdb feeds control telemetry to InfluxDB v2.
//
// Two measurements leave this package: ctl_value carries per-channel
// element levels for continuous charts, and ctl_event carries event
// occurrences for rate dashboards. The SQLite history repository is the
// daemon's record of what changed; this package is how that activity
// gets graphed.
//
// The client wraps influxdb-client-go v2. Writes are buffered and
// batched (batch_size and flush_interval in config.yaml), so the hot
// event path never blocks on the network. Batch failures come back
// through the SetOnError callback, which the daemon wires to its
// logger. When the influxdb section is disabled, Connect returns
// ErrDisabled and the daemon simply runs without telemetry.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // errors.Is(err, influxdb.ErrDisabled) means telemetry is off
//	}
//	defer client.Close()
//
//	client.WriteElementValue("iface=MIXER,name='Master Playback Volume'", 3, []int64{80, 80})
//
// All methods are safe for concurrent use.
package influxdb

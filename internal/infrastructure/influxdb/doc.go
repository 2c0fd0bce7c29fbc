// Package influxdb writes light transitions to InfluxDB v2.
//
// Client wraps the official influxdb-client-go v2 library. It implements
// relay.ChangeRecorder, so once registered with relay.AddRecorder every
// accepted update becomes one light_transition point:
//
//	light_transition,light=light1 value="green",light1="green",light2="red" <ts>
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//	r.AddRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; failures surface
// asynchronously through SetOnError.
package influxdb

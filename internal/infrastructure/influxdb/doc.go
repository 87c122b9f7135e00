// Package influxdb records hub telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and writes two
// measurements:
//   - device_state: one sample per changed device (on, brightness, reachable),
//     tagged by device_id, vendor and room
//   - rate_limit: SwitchBot quota usage (count, limit, remaining)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState(influxdb.DeviceState{DeviceID: "hue-3", Vendor: "hue", On: true, Brightness: 80})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// failures are reported through SetOnError.
package influxdb

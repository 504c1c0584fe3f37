// Package influxdb ships fan telemetry to InfluxDB.
//
// It wraps influxdb-client-go v2 with a non-blocking, batched write API.
// Confirmed fan state transitions and connectivity changes are written as
// points; write failures are reported asynchronously through SetOnError and
// never block the control loop.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    logger.Warn("telemetry disabled", "error", err)
//	}
//	defer client.Close()
//
//	client.WriteConnectivity("bedroom-fan", "mqtt", "connected")
//
// All methods are safe for concurrent use.
package influxdb

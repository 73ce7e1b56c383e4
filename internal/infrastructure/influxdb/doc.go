// Package influxdb provides InfluxDB connectivity for the virtual twin.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, default tagging and health monitoring. The telemetry
// recorder uses it to keep a time series of the energy and drivetrain
// slices.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "garage",
//	    Bucket:  "prius",
//	}
//
//	client, err := influxdb.Connect(cfg, map[string]string{"vehicle": "prius"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("energy", nil, map[string]any{"soc": 0.6})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors arrive through the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb

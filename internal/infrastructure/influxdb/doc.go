// Package influxdb provides InfluxDB connectivity for the vehicle core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing and health monitoring. The core writes
// one vehicle_state point per subsystem on every committed update, so the
// history of temperatures, brightness, volume and seat positions can be
// charted.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Vehicle.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSubsystem("lights",
//	    map[string]any{"brightness": 80, "interior_lights": 1}, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; failures are
// delivered to the SetOnError callback.
package influxdb

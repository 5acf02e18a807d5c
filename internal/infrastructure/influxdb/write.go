package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementVehicleState holds one point per subsystem per update.
const MeasurementVehicleState = "vehicle_state"

// WriteSubsystem queues the numeric fields of one subsystem, tagged with
// the vehicle and subsystem. Empty field sets and writes after Close are
// dropped.
//
//	client.WriteSubsystem("climate",
//	    map[string]any{"temperature": 21.5, "fan_speed": 3}, time.Now())
func (c *Client) WriteSubsystem(subsystem string, fields map[string]any, ts time.Time) {
	if len(fields) == 0 || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statePoint(c.vehicleID, subsystem, fields, ts))
	c.written.Add(1)
}

func statePoint(vehicleID, subsystem string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementVehicleState,
		map[string]string{
			"vehicle_id": vehicleID,
			"subsystem":  subsystem,
		},
		fields,
		ts,
	)
}

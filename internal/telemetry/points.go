package telemetry

import "github.com/nerrad567/vehicle-ai-core/internal/vehicle"

// SubsystemFields flattens one subsystem into numeric InfluxDB fields.
// Booleans become 0/1; strings are left out.
func SubsystemFields(st vehicle.State, sub vehicle.Subsystem) map[string]any {
	switch sub {
	case vehicle.Climate:
		c := st.Climate
		return map[string]any{
			"temperature":     c.Temperature,
			"fan_speed":       c.FanSpeed,
			"ac_enabled":      b2i(c.ACEnabled),
			"heating_enabled": b2i(c.HeatingEnabled),
			"auto_mode":       b2i(c.AutoMode),
			"recirculation":   b2i(c.Recirculation),
		}
	case vehicle.Lights:
		l := st.Lights
		return map[string]any{
			"brightness":      l.Brightness,
			"interior_lights": b2i(l.Interior),
			"ambient_lights":  b2i(l.Ambient),
			"reading_lights":  b2i(l.Reading),
		}
	case vehicle.Seats:
		s := st.Seats
		return map[string]any{
			"driver_heating":    b2i(s.DriverHeating),
			"passenger_heating": b2i(s.PassengerHeating),
			"driver_massage":    b2i(s.DriverMassage),
			"passenger_massage": b2i(s.PassengerMassage),
			"driver_height":     s.DriverPosition.Height,
			"driver_tilt":       s.DriverPosition.Tilt,
			"driver_lumbar":     s.DriverPosition.Lumbar,
			"passenger_height":  s.PassengerPosition.Height,
			"passenger_tilt":    s.PassengerPosition.Tilt,
			"passenger_lumbar":  s.PassengerPosition.Lumbar,
		}
	case vehicle.Infotainment:
		i := st.Infotainment
		return map[string]any{
			"volume":  i.Volume,
			"playing": b2i(i.Playing),
			"muted":   b2i(i.Muted),
		}
	}
	return nil
}

// affectedSubsystems returns the subsystem an action belongs to, or all of
// them for actions such as reset_all that span the whole vehicle.
func affectedSubsystems(action string) []vehicle.Subsystem {
	if sub, ok := vehicle.Action(action).Subsystem(); ok {
		return []vehicle.Subsystem{sub}
	}
	return vehicle.Subsystems
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

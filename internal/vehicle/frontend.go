package vehicle

// FrontendView returns the state in the shape the dashboard consumes.
//
// It keeps every canonical field and adds the aliases the UI binds to:
// climate.temp, lights.on, seats.heatOn, a fixed seats.position slider
// value and a "media" copy of infotainment with an "on" flag.
func FrontendView(s State) map[string]any {
	c, l, st, inf := s.Climate, s.Lights, s.Seats, s.Infotainment

	var lastUpdated any
	if !s.LastUpdated.IsZero() {
		lastUpdated = UnixSeconds(s.LastUpdated)
	}

	infotainment := map[string]any{
		"volume":  inf.Volume,
		"source":  inf.Source,
		"station": derefString(inf.Station),
		"track":   derefString(inf.Track),
		"artist":  derefString(inf.Artist),
		"playing": inf.Playing,
		"muted":   inf.Muted,
	}
	media := make(map[string]any, len(infotainment)+1)
	for k, v := range infotainment {
		media[k] = v
	}
	media["on"] = inf.Playing

	return map[string]any{
		"climate": map[string]any{
			"temperature":     c.Temperature,
			"temp":            c.Temperature,
			"ac_enabled":      c.ACEnabled,
			"fan_speed":       c.FanSpeed,
			"heating_enabled": c.HeatingEnabled,
			"auto_mode":       c.AutoMode,
			"recirculation":   c.Recirculation,
		},
		"lights": map[string]any{
			"interior_lights": l.Interior,
			"on":              l.Interior,
			"ambient_lights":  l.Ambient,
			"reading_lights":  l.Reading,
			"brightness":      l.Brightness,
			"ambient_color":   l.AmbientColor,
		},
		"seats": map[string]any{
			"driver_heating":     st.DriverHeating,
			"heatOn":             st.DriverHeating,
			"passenger_heating":  st.PassengerHeating,
			"driver_massage":     st.DriverMassage,
			"passenger_massage":  st.PassengerMassage,
			"driver_position":    st.DriverPosition,
			"passenger_position": st.PassengerPosition,
			"position":           3,
		},
		"infotainment": infotainment,
		"media":        media,
		"last_updated": lastUpdated,
	}
}

package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// ActionResponse is returned by every per-subsystem POST route.
type ActionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Changes map[string]any `json:"changes"`
}

// describe renders the success message from the post-mutation state.
type describe func(st vehicle.State) string

func fixed(msg string) describe {
	return func(vehicle.State) string { return msg }
}

// run executes one action and answers with the subsystem's new state.
// Executor failures map to 400 command_failed.
func (s *Server) run(w http.ResponseWriter, r *http.Request, sub vehicle.Subsystem, a vehicle.Action, params map[string]any, msg describe) {
	res := s.processor.Execute(r.Context(), command.SourceHTTP, string(a), params)
	if !res.Success {
		writeError(w, http.StatusBadRequest, ErrCodeCommandFailed, res.Error)
		return
	}
	st := s.store.Snapshot()
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: msg(st),
		Data:    subsystemView(st, sub),
		Changes: res.Changes,
	})
}

// numberParam parses a numeric path parameter.
func numberParam(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("%s must be a number, got %q", name, raw))
		return 0, false
	}
	return v, true
}

// seatParam returns the ?seat= query value, defaulting to the driver.
func seatParam(r *http.Request) string {
	if seat := r.URL.Query().Get("seat"); seat != "" {
		return seat
	}
	return vehicle.SeatDriver
}

func subsystemView(st vehicle.State, sub vehicle.Subsystem) any {
	switch sub {
	case vehicle.Climate:
		return st.Climate
	case vehicle.Lights:
		return st.Lights
	case vehicle.Seats:
		return st.Seats
	case vehicle.Infotainment:
		return st.Infotainment
	default:
		return st
	}
}

func (s *Server) climateRoutes(r chi.Router) {
	sub := vehicle.Climate
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Snapshot().Climate)
	})
	r.Post("/turn-on", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.ClimateTurnOnAC, nil, fixed("Climate control turned on"))
	})
	r.Post("/turn-off", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.ClimateTurnOffAC, nil, fixed("Climate control turned off"))
	})
	r.Post("/set-temperature/{temperature}", func(w http.ResponseWriter, r *http.Request) {
		t, ok := numberParam(w, r, "temperature")
		if !ok {
			return
		}
		s.run(w, r, sub, vehicle.ClimateSetTemperature, map[string]any{"temperature": t}, temperatureMsg("Temperature set to"))
	})
	r.Post("/increase-temperature", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.ClimateIncreaseTemperature, nil, temperatureMsg("Temperature increased to"))
	})
	r.Post("/decrease-temperature", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.ClimateDecreaseTemperature, nil, temperatureMsg("Temperature decreased to"))
	})
	r.Post("/set-fan-speed/{speed}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := numberParam(w, r, "speed")
		if !ok {
			return
		}
		s.run(w, r, sub, vehicle.ClimateSetFanSpeed, map[string]any{"speed": v}, func(st vehicle.State) string {
			return fmt.Sprintf("Fan speed set to %d", st.Climate.FanSpeed)
		})
	})
}

func temperatureMsg(prefix string) describe {
	return func(st vehicle.State) string {
		return fmt.Sprintf("%s %g°C", prefix, st.Climate.Temperature)
	}
}

func (s *Server) lightsRoutes(r chi.Router) {
	sub := vehicle.Lights
	brightness := func(prefix string) describe {
		return func(st vehicle.State) string {
			return fmt.Sprintf("%s %d%%", prefix, st.Lights.Brightness)
		}
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Snapshot().Lights)
	})
	r.Post("/turn-on", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.LightsTurnOn, nil, fixed("Lights turned on"))
	})
	r.Post("/turn-off", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.LightsTurnOff, nil, fixed("Lights turned off"))
	})
	r.Post("/dim", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.LightsDim, nil, brightness("Lights dimmed to"))
	})
	r.Post("/brighten", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.LightsBrighten, nil, brightness("Lights brightened to"))
	})
	r.Post("/set-brightness/{brightness}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := numberParam(w, r, "brightness")
		if !ok {
			return
		}
		s.run(w, r, sub, vehicle.LightsSetBrightness, map[string]any{"brightness": v}, brightness("Brightness set to"))
	})
	r.Post("/set-color/{color}", func(w http.ResponseWriter, r *http.Request) {
		color := chi.URLParam(r, "color")
		s.run(w, r, sub, vehicle.LightsSetColor, map[string]any{"color": color}, fixed("Ambient color set to "+color))
	})
}

// positionAxes are the keys accepted by /api/seats/adjust-position.
// "recline" is accepted as an alias for tilt.
var positionAxes = map[string]string{
	"height":  "height",
	"tilt":    "tilt",
	"lumbar":  "lumbar",
	"recline": "tilt",
}

func (s *Server) seatsRoutes(r chi.Router) {
	sub := vehicle.Seats
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Snapshot().Seats)
	})
	r.Get("/presets", func(w http.ResponseWriter, _ *http.Request) {
		names := make([]string, 0, len(vehicle.SeatPresets))
		for name := range vehicle.SeatPresets {
			names = append(names, name)
		}
		sort.Strings(names)
		writeJSON(w, http.StatusOK, map[string]any{
			"presets":   names,
			"positions": []string{"height", "tilt", "lumbar"},
		})
	})
	r.Post("/heat-on", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.SeatsHeatOn, map[string]any{"seat": seatParam(r)}, fixed("Seat heating turned on"))
	})
	r.Post("/heat-off", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.SeatsHeatOff, map[string]any{"seat": seatParam(r)}, fixed("Seat heating turned off"))
	})
	r.Post("/adjust-position", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decodeJSON(r, &body); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
		seat := seatParam(r)
		position := map[string]any{}
		for k, v := range body {
			if k == "seat" {
				if str, ok := v.(string); ok && str != "" {
					seat = str
				}
				continue
			}
			axis, ok := positionAxes[k]
			if !ok {
				writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid position parameter: "+k)
				return
			}
			position[axis] = v
		}
		if len(position) == 0 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "at least one of height, tilt or lumbar is required")
			return
		}
		s.run(w, r, sub, vehicle.SeatsAdjustPosition,
			map[string]any{"seat": seat, "position": position}, fixed("Seat position adjusted"))
	})
	r.Post("/preset/{preset}", func(w http.ResponseWriter, r *http.Request) {
		preset := chi.URLParam(r, "preset")
		s.run(w, r, sub, vehicle.SeatsApplyPreset,
			map[string]any{"seat": seatParam(r), "preset": preset}, fixed("Applied "+preset+" seat preset"))
	})
}

func (s *Server) infotainmentRoutes(r chi.Router) {
	sub := vehicle.Infotainment
	volume := func(prefix string) describe {
		return func(st vehicle.State) string {
			return fmt.Sprintf("%s %d", prefix, st.Infotainment.Volume)
		}
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Snapshot().Infotainment)
	})
	r.Post("/play", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.InfotainmentPlay, nil, fixed("Media playback started"))
	})
	r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.InfotainmentPause, nil, fixed("Media playback stopped"))
	})
	r.Post("/volume-up", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.InfotainmentVolumeUp, nil, volume("Volume increased to"))
	})
	r.Post("/volume-down", func(w http.ResponseWriter, r *http.Request) {
		s.run(w, r, sub, vehicle.InfotainmentVolumeDown, nil, volume("Volume decreased to"))
	})
	r.Post("/set-volume/{volume}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := numberParam(w, r, "volume")
		if !ok {
			return
		}
		s.run(w, r, sub, vehicle.InfotainmentSetVolume, map[string]any{"volume": v}, volume("Volume set to"))
	})
	r.Post("/set-source/{source}", func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		s.run(w, r, sub, vehicle.InfotainmentSetSource, map[string]any{"source": source}, fixed("Source set to "+source))
	})
}

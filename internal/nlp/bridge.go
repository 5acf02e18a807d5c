package nlp

import (
	"maps"
	"strings"
)

// Parameter defaults injected by Translate.
const (
	DefaultTemperature = 22.0
	DefaultVolume      = 50
	DefaultSeat        = "driver"
)

// mlActions maps ML vocabulary onto executor actions. Names not listed
// pass through unchanged.
var mlActions = map[string]string{
	"climate_set":           "climate_set_temperature",
	"climate_turn_on":       "climate_turn_on_ac",
	"climate_turn_off":      "climate_turn_off_ac",
	"climate_increase":      "climate_increase_temperature",
	"climate_decrease":      "climate_decrease_temperature",
	"seats_adjust":          "seats_adjust_position",
	"infotainment_stop":     "infotainment_pause",
	"infotainment_turn_off": "infotainment_pause",
	"infotainment_turn_on":  "infotainment_play",
	"infotainment_set":      "infotainment_set_volume",
	"infotainment_adjust":   "infotainment_set_volume",
	"infotainment_increase": "infotainment_volume_up",
	"infotainment_decrease": "infotainment_volume_down",
}

// Translate maps a parse result onto an executor action and its
// parameters. The result's own Parameters map is never modified.
//
//   - climate_set_temperature without "temperature" takes it from "temp"
//     or "value", else 22.
//   - every seats action gets seat=driver when none is given.
//   - infotainment_set_volume without "volume" takes it from "value" or
//     "level", else 50.
func Translate(res ParseResult) (action string, params map[string]any) {
	action = strings.TrimSpace(res.Action)
	if mapped, ok := mlActions[action]; ok {
		action = mapped
	}

	params = maps.Clone(res.Parameters)
	if params == nil {
		params = map[string]any{}
	}

	switch {
	case action == "climate_set_temperature":
		if _, ok := params["temperature"]; !ok {
			params = map[string]any{"temperature": firstOf(params, DefaultTemperature, "temp", "value")}
		}
	case strings.HasPrefix(action, "seats_"):
		if _, ok := params["seat"]; !ok {
			params["seat"] = DefaultSeat
		}
	case action == "infotainment_set_volume":
		if _, ok := params["volume"]; !ok {
			params = map[string]any{"volume": firstOf(params, DefaultVolume, "value", "level")}
		}
	}
	return action, params
}

func firstOf(params map[string]any, def any, keys ...string) any {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			return v
		}
	}
	return def
}

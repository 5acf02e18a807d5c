package vehicle

import (
	"fmt"
	"sort"
	"strings"
)

// Subsystem is an independently mutable slice of vehicle state.
type Subsystem string

// Subsystems, in the order their prefixes are matched.
const (
	Climate      Subsystem = "climate"
	Lights       Subsystem = "lights"
	Seats        Subsystem = "seats"
	Infotainment Subsystem = "infotainment"
)

// Subsystems lists every subsystem.
var Subsystems = []Subsystem{Climate, Lights, Seats, Infotainment}

// Action identifies a mutation in the executor's fixed vocabulary.
type Action string

// Climate actions.
const (
	ClimateSetTemperature      Action = "climate_set_temperature"
	ClimateTurnOnAC            Action = "climate_turn_on_ac"
	ClimateTurnOffAC           Action = "climate_turn_off_ac"
	ClimateIncreaseTemperature Action = "climate_increase_temperature"
	ClimateDecreaseTemperature Action = "climate_decrease_temperature"
	ClimateSetFanSpeed         Action = "climate_set_fan_speed"
	ClimateIncreaseFanSpeed    Action = "climate_increase_fan_speed"
	ClimateDecreaseFanSpeed    Action = "climate_decrease_fan_speed"
	ClimateTurnOnHeating       Action = "climate_turn_on_heating"
	ClimateTurnOffHeating      Action = "climate_turn_off_heating"
	ClimateToggleAuto          Action = "climate_toggle_auto"
	ClimateToggleRecirculation Action = "climate_toggle_recirculation"
)

// Lights actions.
const (
	LightsTurnOn         Action = "lights_turn_on"
	LightsTurnOff        Action = "lights_turn_off"
	LightsSetBrightness  Action = "lights_set_brightness"
	LightsBrighten       Action = "lights_brighten"
	LightsDim            Action = "lights_dim"
	LightsToggleInterior Action = "lights_toggle_interior"
	LightsToggleAmbient  Action = "lights_toggle_ambient"
	LightsToggleReading  Action = "lights_toggle_reading"
	LightsSetColor       Action = "lights_set_color"
)

// Seats actions.
const (
	SeatsHeatOn         Action = "seats_heat_on"
	SeatsHeatOff        Action = "seats_heat_off"
	SeatsMassageOn      Action = "seats_massage_on"
	SeatsMassageOff     Action = "seats_massage_off"
	SeatsAdjustPosition Action = "seats_adjust_position"
	SeatsApplyPreset    Action = "seats_apply_preset"
)

// Infotainment actions.
const (
	InfotainmentSetVolume     Action = "infotainment_set_volume"
	InfotainmentVolumeUp      Action = "infotainment_volume_up"
	InfotainmentVolumeDown    Action = "infotainment_volume_down"
	InfotainmentPlay          Action = "infotainment_play"
	InfotainmentPause         Action = "infotainment_pause"
	InfotainmentMute          Action = "infotainment_mute"
	InfotainmentUnmute        Action = "infotainment_unmute"
	InfotainmentNextTrack     Action = "infotainment_next_track"
	InfotainmentPreviousTrack Action = "infotainment_previous_track"
	InfotainmentSetSource     Action = "infotainment_set_source"
	InfotainmentRadioTune     Action = "infotainment_radio_tune"
)

// aliases are alternative spellings accepted by the executor.
var aliases = map[Action]Action{
	"climate_increase":      ClimateIncreaseTemperature,
	"climate_decrease":      ClimateDecreaseTemperature,
	"lights_set":            LightsSetBrightness,
	"seats_adjust":          SeatsAdjustPosition,
	"infotainment_set":      InfotainmentSetVolume,
	"infotainment_increase": InfotainmentVolumeUp,
	"infotainment_decrease": InfotainmentVolumeDown,
	"infotainment_stop":     InfotainmentPause,
}

// Subsystem returns the subsystem named by the action's prefix.
func (a Action) Subsystem() (Subsystem, bool) {
	for _, s := range Subsystems {
		if strings.HasPrefix(string(a), string(s)+"_") {
			return s, true
		}
	}
	return "", false
}

// Canonical resolves aliases to the primary action name.
func (a Action) Canonical() Action {
	if c, ok := aliases[a]; ok {
		return c
	}
	return a
}

// Valid reports whether the action (or its alias target) has a handler.
func (a Action) Valid() bool {
	_, ok := handlers[a.Canonical()]
	return ok
}

func (a Action) String() string { return string(a) }

// ParseAction validates a raw action name and returns its canonical form.
//
// Returns ErrUnknownCategory when the prefix names no subsystem and
// ErrUnknownAction when the subsystem does not recognise the name.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.TrimSpace(raw))
	sub, ok := a.Subsystem()
	if !ok {
		return "", &actionError{raw: raw}
	}
	c := a.Canonical()
	if _, ok := handlers[c]; !ok {
		return "", &actionError{raw: raw, sub: sub}
	}
	return c, nil
}

// actionError carries the client-facing rejection text for an action name.
// It unwraps to ErrUnknownCategory, or to ErrUnknownAction once the
// subsystem is known.
type actionError struct {
	raw string
	sub Subsystem
}

func (e *actionError) Error() string {
	if e.sub == "" {
		return "Unknown action category: " + e.raw
	}
	return fmt.Sprintf("Unknown %s action: %s", e.sub, e.raw)
}

func (e *actionError) Unwrap() error {
	if e.sub == "" {
		return ErrUnknownCategory
	}
	return ErrUnknownAction
}

// Actions returns the canonical actions of a subsystem, sorted.
func Actions(sub Subsystem) []Action {
	var out []Action
	for a := range handlers {
		if s, _ := a.Subsystem(); s == sub {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

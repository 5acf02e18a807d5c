package vehicle

import (
	"encoding/json"
	"time"
)

// Value ranges enforced by the executor. Out-of-range input is clamped.
const (
	MinTemperature = 16.0
	MaxTemperature = 30.0
	MinFanSpeed    = 0
	MaxFanSpeed    = 5
	MinPercent     = 0
	MaxPercent     = 100
)

// Seat identifiers accepted by the seats actions.
const (
	SeatDriver    = "driver"
	SeatPassenger = "passenger"
)

// AmbientColors is the allow-list for lights_set_color.
var AmbientColors = []string{"white", "blue", "red", "green", "purple", "orange"}

// MediaSources is the allow-list for infotainment_set_source.
var MediaSources = []string{"radio", "bluetooth", "usb", "aux", "music"}

// ClimateState holds the HVAC settings.
type ClimateState struct {
	Temperature    float64 `json:"temperature"`
	FanSpeed       int     `json:"fan_speed"`
	ACEnabled      bool    `json:"ac_enabled"`
	HeatingEnabled bool    `json:"heating_enabled"`
	AutoMode       bool    `json:"auto_mode"`
	Recirculation  bool    `json:"recirculation"`
}

// LightsState holds cabin lighting settings.
type LightsState struct {
	Interior     bool   `json:"interior_lights"`
	Ambient      bool   `json:"ambient_lights"`
	Reading      bool   `json:"reading_lights"`
	Brightness   int    `json:"brightness"`
	AmbientColor string `json:"ambient_color"`
}

// SeatPosition is a seat's adjustable axes, each 0–100.
type SeatPosition struct {
	Height int `json:"height"`
	Tilt   int `json:"tilt"`
	Lumbar int `json:"lumbar"`
}

// SeatsState holds front seat comfort settings.
type SeatsState struct {
	DriverHeating     bool         `json:"driver_heating"`
	PassengerHeating  bool         `json:"passenger_heating"`
	DriverMassage     bool         `json:"driver_massage"`
	PassengerMassage  bool         `json:"passenger_massage"`
	DriverPosition    SeatPosition `json:"driver_position"`
	PassengerPosition SeatPosition `json:"passenger_position"`
}

// InfotainmentState holds media settings. Station, Track and Artist are optional.
type InfotainmentState struct {
	Volume  int     `json:"volume"`
	Source  string  `json:"source"`
	Station *string `json:"station"`
	Track   *string `json:"track"`
	Artist  *string `json:"artist"`
	Playing bool    `json:"playing"`
	Muted   bool    `json:"muted"`
}

// State is a point-in-time view of every subsystem.
//
// Values returned by Store.Snapshot are deep copies and may be retained
// or modified by the caller without affecting the store.
type State struct {
	Climate      ClimateState      `json:"climate"`
	Lights       LightsState       `json:"lights"`
	Seats        SeatsState        `json:"seats"`
	Infotainment InfotainmentState `json:"infotainment"`

	// LastUpdated is the time of the most recent successful mutation.
	// It is zero until the first one.
	LastUpdated time.Time `json:"-"`
}

// MarshalJSON encodes LastUpdated as fractional Unix seconds, or null when unset.
func (s State) MarshalJSON() ([]byte, error) {
	type plain State
	var ts *float64
	if !s.LastUpdated.IsZero() {
		v := UnixSeconds(s.LastUpdated)
		ts = &v
	}
	return json.Marshal(struct {
		plain
		LastUpdated *float64 `json:"last_updated"`
	}{plain(s), ts})
}

// Defaults are the configurable start-up values.
type Defaults struct {
	Temperature float64
	FanSpeed    int
	Volume      int
}

// FactoryDefaults returns the values used when no configuration overrides them.
func FactoryDefaults() Defaults {
	return Defaults{Temperature: 22, FanSpeed: 3, Volume: 50}
}

// NewState builds the initial vehicle state.
func NewState(d Defaults) State {
	station := "FM 101.5"
	return State{
		Climate: ClimateState{
			Temperature:   clampFloat(d.Temperature, MinTemperature, MaxTemperature),
			FanSpeed:      clampInt(d.FanSpeed, MinFanSpeed, MaxFanSpeed),
			ACEnabled:     true,
			AutoMode:      true,
			Recirculation: false,
		},
		Lights: LightsState{
			Interior:     true,
			Ambient:      true,
			Brightness:   80,
			AmbientColor: "white",
		},
		Seats: SeatsState{
			DriverPosition:    SeatPosition{Height: 50, Tilt: 50, Lumbar: 50},
			PassengerPosition: SeatPosition{Height: 50, Tilt: 50, Lumbar: 50},
		},
		Infotainment: InfotainmentState{
			Volume:  clampInt(d.Volume, MinPercent, MaxPercent),
			Source:  "radio",
			Station: &station,
		},
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Infotainment.Station = cloneString(s.Infotainment.Station)
	out.Infotainment.Track = cloneString(s.Infotainment.Track)
	out.Infotainment.Artist = cloneString(s.Infotainment.Artist)
	return out
}

// fields flattens one subsystem into wire-name → value pairs. It is used to
// compute the changes reported for a mutation.
func (s *State) fields(sub Subsystem) map[string]any {
	switch sub {
	case Climate:
		c := s.Climate
		return map[string]any{
			"temperature":     c.Temperature,
			"fan_speed":       c.FanSpeed,
			"ac_enabled":      c.ACEnabled,
			"heating_enabled": c.HeatingEnabled,
			"auto_mode":       c.AutoMode,
			"recirculation":   c.Recirculation,
		}
	case Lights:
		l := s.Lights
		return map[string]any{
			"interior_lights": l.Interior,
			"ambient_lights":  l.Ambient,
			"reading_lights":  l.Reading,
			"brightness":      l.Brightness,
			"ambient_color":   l.AmbientColor,
		}
	case Seats:
		st := s.Seats
		return map[string]any{
			"driver_heating":     st.DriverHeating,
			"passenger_heating":  st.PassengerHeating,
			"driver_massage":     st.DriverMassage,
			"passenger_massage":  st.PassengerMassage,
			"driver_position":    st.DriverPosition,
			"passenger_position": st.PassengerPosition,
		}
	case Infotainment:
		i := s.Infotainment
		return map[string]any{
			"volume":  i.Volume,
			"source":  i.Source,
			"station": derefString(i.Station),
			"track":   derefString(i.Track),
			"artist":  derefString(i.Artist),
			"playing": i.Playing,
			"muted":   i.Muted,
		}
	}
	return nil
}

// diff returns the fields of sub whose value differs between before and after.
func diff(before, after *State, sub Subsystem) map[string]any {
	prev := before.fields(sub)
	changes := make(map[string]any)
	for k, v := range after.fields(sub) {
		if prev[k] != v {
			changes[k] = v
		}
	}
	return changes
}

// UnixSeconds converts t to fractional seconds since the epoch, the
// timestamp format used on every client-facing message.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func derefString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

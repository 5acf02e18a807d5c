package vehicle

import "fmt"

// handler mutates a working copy of the state. It must validate every input
// before writing any field; the copy is discarded when it returns an error.
type handler func(st *State, in input) error

// handlers maps each canonical action to its implementation.
var handlers = map[Action]handler{
	// climate
	ClimateSetTemperature: func(st *State, in input) error {
		t := in.number("temperature", in.defaults.Temperature, st.Climate.Temperature)
		st.Climate.Temperature = clampFloat(t, MinTemperature, MaxTemperature)
		return nil
	},
	ClimateTurnOnAC:  func(st *State, _ input) error { st.Climate.ACEnabled = true; return nil },
	ClimateTurnOffAC: func(st *State, _ input) error { st.Climate.ACEnabled = false; return nil },
	ClimateIncreaseTemperature: func(st *State, _ input) error {
		st.Climate.Temperature = clampFloat(st.Climate.Temperature+1, MinTemperature, MaxTemperature)
		return nil
	},
	ClimateDecreaseTemperature: func(st *State, _ input) error {
		st.Climate.Temperature = clampFloat(st.Climate.Temperature-1, MinTemperature, MaxTemperature)
		return nil
	},
	ClimateSetFanSpeed: func(st *State, in input) error {
		s := in.number("speed", float64(in.defaults.FanSpeed), float64(st.Climate.FanSpeed))
		st.Climate.FanSpeed = roundClamp(s, MinFanSpeed, MaxFanSpeed)
		return nil
	},
	ClimateIncreaseFanSpeed: func(st *State, _ input) error {
		st.Climate.FanSpeed = clampInt(st.Climate.FanSpeed+1, MinFanSpeed, MaxFanSpeed)
		return nil
	},
	ClimateDecreaseFanSpeed: func(st *State, _ input) error {
		st.Climate.FanSpeed = clampInt(st.Climate.FanSpeed-1, MinFanSpeed, MaxFanSpeed)
		return nil
	},
	ClimateTurnOnHeating:  func(st *State, _ input) error { st.Climate.HeatingEnabled = true; return nil },
	ClimateTurnOffHeating: func(st *State, _ input) error { st.Climate.HeatingEnabled = false; return nil },
	ClimateToggleAuto: func(st *State, _ input) error {
		st.Climate.AutoMode = !st.Climate.AutoMode
		return nil
	},
	ClimateToggleRecirculation: func(st *State, _ input) error {
		st.Climate.Recirculation = !st.Climate.Recirculation
		return nil
	},

	// lights
	LightsTurnOn: func(st *State, _ input) error {
		st.Lights.Interior = true
		st.Lights.Ambient = true
		return nil
	},
	LightsTurnOff: func(st *State, _ input) error {
		st.Lights.Interior = false
		st.Lights.Ambient = false
		st.Lights.Reading = false
		return nil
	},
	LightsSetBrightness: func(st *State, in input) error {
		b := in.number("brightness", 80, float64(st.Lights.Brightness))
		st.Lights.Brightness = roundClamp(b, MinPercent, MaxPercent)
		return nil
	},
	LightsBrighten: func(st *State, _ input) error {
		st.Lights.Brightness = clampInt(st.Lights.Brightness+10, MinPercent, MaxPercent)
		return nil
	},
	LightsDim: func(st *State, _ input) error {
		st.Lights.Brightness = clampInt(st.Lights.Brightness-10, MinPercent, MaxPercent)
		return nil
	},
	LightsToggleInterior: func(st *State, _ input) error { st.Lights.Interior = !st.Lights.Interior; return nil },
	LightsToggleAmbient:  func(st *State, _ input) error { st.Lights.Ambient = !st.Lights.Ambient; return nil },
	LightsToggleReading:  func(st *State, _ input) error { st.Lights.Reading = !st.Lights.Reading; return nil },
	LightsSetColor: func(st *State, in input) error {
		c, err := in.enum("color", "white", AmbientColors, ErrInvalidColor)
		if err != nil {
			return err
		}
		st.Lights.AmbientColor = c
		return nil
	},

	// seats
	SeatsHeatOn:     seatFlag(func(s *SeatsState, driver bool) { setSeat(&s.DriverHeating, &s.PassengerHeating, driver, true) }),
	SeatsHeatOff:    seatFlag(func(s *SeatsState, driver bool) { setSeat(&s.DriverHeating, &s.PassengerHeating, driver, false) }),
	SeatsMassageOn:  seatFlag(func(s *SeatsState, driver bool) { setSeat(&s.DriverMassage, &s.PassengerMassage, driver, true) }),
	SeatsMassageOff: seatFlag(func(s *SeatsState, driver bool) { setSeat(&s.DriverMassage, &s.PassengerMassage, driver, false) }),
	SeatsAdjustPosition: func(st *State, in input) error {
		seat, err := in.seat()
		if err != nil {
			return err
		}
		pos, err := in.position()
		if err != nil {
			return err
		}
		target := seatPosition(&st.Seats, seat)
		*target = pos.applyTo(*target)
		return nil
	},
	SeatsApplyPreset: func(st *State, in input) error {
		seat, err := in.seat()
		if err != nil {
			return err
		}
		name, err := in.text("preset", "", ErrInvalidPreset)
		if err != nil {
			return err
		}
		preset, ok := SeatPresets[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPreset, name)
		}
		*seatPosition(&st.Seats, seat) = preset
		return nil
	},

	// infotainment
	InfotainmentSetVolume: func(st *State, in input) error {
		v := in.number("volume", float64(in.defaults.Volume), float64(st.Infotainment.Volume))
		st.Infotainment.Volume = roundClamp(v, MinPercent, MaxPercent)
		return nil
	},
	InfotainmentVolumeUp: func(st *State, _ input) error {
		st.Infotainment.Volume = clampInt(st.Infotainment.Volume+5, MinPercent, MaxPercent)
		return nil
	},
	InfotainmentVolumeDown: func(st *State, _ input) error {
		st.Infotainment.Volume = clampInt(st.Infotainment.Volume-5, MinPercent, MaxPercent)
		return nil
	},
	InfotainmentPlay:   func(st *State, _ input) error { st.Infotainment.Playing = true; return nil },
	InfotainmentPause:  func(st *State, _ input) error { st.Infotainment.Playing = false; return nil },
	InfotainmentMute:   func(st *State, _ input) error { st.Infotainment.Muted = true; return nil },
	InfotainmentUnmute: func(st *State, _ input) error { st.Infotainment.Muted = false; return nil },
	InfotainmentNextTrack: func(st *State, _ input) error {
		track := "Next Track"
		st.Infotainment.Track = &track
		return nil
	},
	InfotainmentPreviousTrack: func(st *State, _ input) error {
		track := "Previous Track"
		st.Infotainment.Track = &track
		return nil
	},
	InfotainmentSetSource: func(st *State, in input) error {
		src, err := in.enum("source", "radio", MediaSources, ErrInvalidSource)
		if err != nil {
			return err
		}
		st.Infotainment.Source = src
		return nil
	},
	InfotainmentRadioTune: func(st *State, in input) error {
		raw, ok := in.params["station"]
		station := "FM 101.5"
		if ok && raw != nil {
			s, isString := raw.(string)
			if !isString || s == "" {
				return fmt.Errorf("%w: %v", ErrInvalidStation, raw)
			}
			station = s
		}
		st.Infotainment.Station = &station
		st.Infotainment.Source = "radio"
		st.Infotainment.Playing = true
		return nil
	},
}

// SeatPresets are the named seat positions accepted by seats_apply_preset.
var SeatPresets = map[string]SeatPosition{
	"comfort": {Height: 60, Tilt: 30, Lumbar: 70},
	"sport":   {Height: 40, Tilt: 80, Lumbar: 50},
	"relax":   {Height: 80, Tilt: 10, Lumbar: 90},
}

// seatFlag adapts a per-seat boolean setter into a handler.
func seatFlag(set func(s *SeatsState, driver bool)) handler {
	return func(st *State, in input) error {
		seat, err := in.seat()
		if err != nil {
			return err
		}
		set(&st.Seats, seat == SeatDriver)
		return nil
	}
}

func setSeat(driverField, passengerField *bool, driver, v bool) {
	if driver {
		*driverField = v
		return
	}
	*passengerField = v
}

func seatPosition(s *SeatsState, seat string) *SeatPosition {
	if seat == SeatPassenger {
		return &s.PassengerPosition
	}
	return &s.DriverPosition
}

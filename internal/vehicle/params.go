package vehicle

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// input is the parameter view passed to action handlers.
type input struct {
	params   map[string]any
	defaults Defaults
}

// number returns the numeric parameter key.
// An absent key yields def; a present but non-numeric value yields current.
func (in input) number(key string, def, current float64) float64 {
	raw, ok := in.params[key]
	if !ok || raw == nil {
		return def
	}
	if f, ok := toFloat(raw); ok {
		return f
	}
	return current
}

// text returns the string parameter key lowercased and trimmed, or def when absent.
// A non-string value is reported with sentinel.
func (in input) text(key, def string, sentinel error) (string, error) {
	raw, ok := in.params[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %v", sentinel, raw)
	}
	return strings.ToLower(strings.TrimSpace(s)), nil
}

// enum returns the string parameter key, which must be one of allowed.
func (in input) enum(key, def string, allowed []string, sentinel error) (string, error) {
	v, err := in.text(key, def, sentinel)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q (allowed: %s)", sentinel, v, strings.Join(allowed, ", "))
}

// seat returns the targeted seat, defaulting to the driver.
func (in input) seat() (string, error) {
	return in.enum("seat", SeatDriver, []string{SeatDriver, SeatPassenger}, ErrInvalidSeat)
}

// positionInput is a partial seat position. Nil fields are left unchanged.
type positionInput struct {
	Height *float64 `mapstructure:"height"`
	Tilt   *float64 `mapstructure:"tilt"`
	Lumbar *float64 `mapstructure:"lumbar"`
}

// position decodes the "position" parameter. Every present field must be
// numeric; nothing is applied otherwise.
func (in input) position() (positionInput, error) {
	var out positionInput
	raw, ok := in.params["position"]
	if !ok || raw == nil {
		return out, nil
	}
	if err := decodeWeak(raw, &out); err != nil {
		return positionInput{}, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return out, nil
}

// applyTo returns p with the present fields clamped into range.
func (pi positionInput) applyTo(p SeatPosition) SeatPosition {
	if pi.Height != nil {
		p.Height = roundClamp(*pi.Height, MinPercent, MaxPercent)
	}
	if pi.Tilt != nil {
		p.Tilt = roundClamp(*pi.Tilt, MinPercent, MaxPercent)
	}
	if pi.Lumbar != nil {
		p.Lumbar = roundClamp(*pi.Lumbar, MinPercent, MaxPercent)
	}
	return p
}

// decodeWeak decodes a loosely typed value (typically parsed JSON) into out,
// accepting numeric strings for numeric fields.
func decodeWeak(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// toFloat converts JSON-ish numeric values. Booleans, NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func roundClamp(v float64, lo, hi int) int {
	return int(clampFloat(math.Round(v), float64(lo), float64(hi)))
}

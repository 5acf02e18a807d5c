// Package vehicle owns the simulated vehicle state and the command executor.
//
// A single Store is created at start-up and injected wherever state is read
// or mutated. Commands are named by a fixed Action vocabulary, prefixed by
// subsystem (climate_, lights_, seats_, infotainment_), and are applied
// atomically:
//
//	store := vehicle.NewStore(vehicle.WithDefaults(defaults))
//	res := store.Execute(ctx, "climate_set_temperature", map[string]any{"temperature": 45})
//	// res.Success == true, res.Changes == {"temperature": 30}
//
// Numeric parameters are clamped into range. Enum parameters (colour,
// source, seat, preset) are checked against allow-lists and fail the
// command without mutating anything. State is held in memory only and
// resets when the process restarts.
package vehicle

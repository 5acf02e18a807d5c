// Package telemetry moves vehicle state out of the process and commands
// into it.
//
//   - Publisher mirrors every committed update to MQTT (retained snapshot)
//     and InfluxDB (numeric history).
//   - CommandSubscriber executes commands received on the MQTT command topic.
//   - Journal records every executed command in SQLite for /api/history.
//
// The journal is write-only from the state's point of view: it is never
// replayed into the store.
package telemetry

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

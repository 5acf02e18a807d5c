// Vehicle AI Core - voice-driven in-car control backend
//
// vehicled keeps the authoritative climate, lights, seats and infotainment
// state, executes structured and free-text commands against it, and
// pushes every change to WebSocket dashboards, MQTT and InfluxDB.
package main

import (
	"fmt"
	"os"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

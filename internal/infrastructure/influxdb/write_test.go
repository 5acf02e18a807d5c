package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
)

func TestStatePoint(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	p := statePoint("vehicle-001", "infotainment", map[string]any{"volume": 35, "muted": 0}, ts)

	line := write.PointToLineProtocol(p, time.Second)
	want := "vehicle_state,subsystem=infotainment,vehicle_id=vehicle-001 muted=0i,volume=35i 1700000000\n"
	if line != want {
		t.Errorf("line protocol = %q, want %q", line, want)
	}
}

func TestWriteSubsystem_Unconnected(t *testing.T) {
	c := &Client{}

	c.WriteSubsystem("climate", map[string]any{"temperature": 22.0}, time.Now())

	if c.Written() != 0 {
		t.Errorf("Written() = %d on an unconnected client", c.Written())
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.InfluxDBConfig
		wantBatch uint
		wantFlush uint
	}{
		{"defaults", config.InfluxDBConfig{}, 100, 10000},
		{"configured", config.InfluxDBConfig{BatchSize: 500, FlushInterval: 2}, 500, 2000},
		{"negative", config.InfluxDBConfig{BatchSize: -1, FlushInterval: -5}, 100, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batchSize(tt.cfg); got != tt.wantBatch {
				t.Errorf("batchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := flushIntervalMillis(tt.cfg); got != tt.wantFlush {
				t.Errorf("flushIntervalMillis() = %d, want %d", got, tt.wantFlush)
			}
		})
	}
}

package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nerrad567/vehicle-ai-core/internal/connection"
	"github.com/nerrad567/vehicle-ai-core/internal/process"
)

// SidecarReporter exposes the supervised ML parser. *process.Manager
// implements it.
type SidecarReporter interface {
	Stats() process.Stats
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Host          *HostMetrics     `json:"host,omitempty"`
	WebSocket     connection.Stats `json:"websocket"`
	StateVersion  uint64           `json:"state_version"`
	Sidecar       *process.Stats   `json:"sidecar,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// HostMetrics contains machine-wide CPU and memory usage.
type HostMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
}

// handleSystemMetrics returns runtime, host and connection statistics.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket:    s.registry.Stats(),
		StateVersion: s.store.Version(),
	}
	if s.sidecar != nil {
		st := s.sidecar.Stats()
		metrics.Sidecar = &st
	}

	// Host stats are best effort; containers may hide /proc.
	host := &HostMetrics{}
	hostOK := false
	if usage, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(usage) > 0 {
		host.CPUPercent = usage[0]
		hostOK = true
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		host.MemoryPercent = vm.UsedPercent
		host.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
		host.MemoryTotalMB = float64(vm.Total) / 1024 / 1024
		hostOK = true
	}
	if hostOK {
		metrics.Host = host
	} else {
		s.logger.Debug("host metrics unavailable")
	}

	writeJSON(w, http.StatusOK, metrics)
}

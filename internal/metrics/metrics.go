// Package metrics exposes Prometheus collectors for commands, parsing,
// WebSocket connections and HTTP traffic.
//
// A Registry satisfies the observer interfaces of the connection, nlp and
// command packages, so wiring it up is a matter of passing it to each
// component.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// sourceCache labels parses answered from the parse cache.
const sourceCache = "cache"

// Registry owns a private Prometheus registry and the vehicle collectors.
type Registry struct {
	reg *prometheus.Registry

	commands          *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	parses            *prometheus.CounterVec
	connections       prometheus.Gauge
	broadcastFailures prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates a Registry with Go runtime and process collectors included.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_commands_total",
			Help: "Commands executed against the vehicle state.",
		}, []string{"action", "success"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vehicle_command_duration_seconds",
			Help:    "Time spent executing a command.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"subsystem"}),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nlp_parse_total",
			Help: "Text commands parsed, by the path that produced the result.",
		}, []string{"source"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Currently registered WebSocket connections.",
		}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "websocket_broadcast_failures_total",
			Help: "Connections dropped because a delivery failed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.commands,
		r.commandDuration,
		r.parses,
		r.connections,
		r.broadcastFailures,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// CommandExecuted records one executor call.
func (r *Registry) CommandExecuted(action string, success bool, elapsed time.Duration) {
	r.commands.WithLabelValues(action, strconv.FormatBool(success)).Inc()

	sub := "unknown"
	if s, ok := vehicle.Action(action).Subsystem(); ok {
		sub = string(s)
	}
	r.commandDuration.WithLabelValues(sub).Observe(elapsed.Seconds())
}

// Parsed records one normalizer result.
func (r *Registry) Parsed(source string, cached bool) {
	if cached {
		source = sourceCache
	}
	r.parses.WithLabelValues(source).Inc()
}

// ConnectionsChanged sets the connection gauge.
func (r *Registry) ConnectionsChanged(n int) {
	r.connections.Set(float64(n))
}

// DeliveryFailed counts connections removed after failed deliveries.
func (r *Registry) DeliveryFailed(n int) {
	r.broadcastFailures.Add(float64(n))
}

// Middleware records request counts and latency labelled by the chi
// route pattern, so path parameters do not explode cardinality.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}

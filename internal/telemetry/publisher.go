package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// StatePublisher publishes retained state snapshots. *mqtt.Client
// implements it.
type StatePublisher interface {
	PublishState(state any) error
}

// PointWriter records numeric subsystem state. *influxdb.Client
// implements it.
type PointWriter interface {
	WriteSubsystem(subsystem string, fields map[string]any, ts time.Time)
}

// Publisher mirrors committed updates to MQTT and InfluxDB.
//
// HandleUpdate never blocks the command path: it hands the update to a
// single worker through a one-slot mailbox. When updates arrive faster
// than the broker accepts them, older pending snapshots are replaced by
// newer ones, and updates older than the last published version are
// skipped.
type Publisher struct {
	mqtt   StatePublisher
	influx PointWriter
	logger Logger

	pending chan vehicle.Update
	done    chan struct{}

	mu          sync.Mutex
	lastVersion uint64
	published   uint64
}

// NewPublisher creates a publisher. Either sink may be nil.
func NewPublisher(m StatePublisher, w PointWriter) *Publisher {
	return &Publisher{
		mqtt:    m,
		influx:  w,
		logger:  noopLogger{},
		pending: make(chan vehicle.Update, 1),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the publisher logger.
func (p *Publisher) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// HandleUpdate queues u for publication. It matches vehicle.UpdateFunc.
func (p *Publisher) HandleUpdate(_ context.Context, u vehicle.Update) {
	for {
		select {
		case p.pending <- u:
			return
		default:
		}
		// Mailbox full: drop the stale snapshot and retry.
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run publishes queued updates until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-p.pending:
			p.publish(u)
		}
	}
}

// Done is closed when Run returns.
func (p *Publisher) Done() <-chan struct{} { return p.done }

// Published returns the number of updates published so far.
func (p *Publisher) Published() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}

func (p *Publisher) publish(u vehicle.Update) {
	p.mu.Lock()
	if u.Version != 0 && u.Version <= p.lastVersion {
		p.mu.Unlock()
		p.logger.Debug("skipping stale update", "version", u.Version, "last", p.lastVersion)
		return
	}
	p.lastVersion = u.Version
	p.mu.Unlock()

	if p.mqtt != nil {
		if err := p.mqtt.PublishState(u.State); err != nil {
			p.logger.Warn("state publish failed", "version", u.Version, "error", err)
		}
	}

	if p.influx != nil {
		ts := u.State.LastUpdated
		if ts.IsZero() {
			ts = time.Now()
		}
		for _, sub := range affectedSubsystems(u.Action) {
			p.influx.WriteSubsystem(string(sub), SubsystemFields(u.State, sub), ts)
		}
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
}

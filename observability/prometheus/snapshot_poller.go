package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-engine/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// EngineSnapshotProvider provides current engine stats snapshots.
type EngineSnapshotProvider interface {
	Stats() core.EngineStats
}

// WorkerSnapshotProvider provides per-worker stats snapshots.
type WorkerSnapshotProvider interface {
	WorkerStats() []core.WorkerStats
}

// SnapshotPoller periodically exports engine Stats() snapshots into Prometheus gauges.
// Engines that also implement WorkerSnapshotProvider get per-worker gauges.
type SnapshotPoller struct {
	interval time.Duration

	enginesMu sync.RWMutex
	engines   map[string]EngineSnapshotProvider

	engineQueued        *prom.GaugeVec
	engineInFlight      *prom.GaugeVec
	engineWorkers       *prom.GaugeVec
	engineActiveWorkers *prom.GaugeVec
	engineAccepted      *prom.GaugeVec
	engineRejected      *prom.GaugeVec
	engineFaults        *prom.GaugeVec
	engineClosed        *prom.GaugeVec

	workerExecuted *prom.GaugeVec
	workerFaulted  *prom.GaugeVec
	workerState    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "taskengine"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval:            interval,
		engines:             make(map[string]EngineSnapshotProvider),
		engineQueued:        gauge("engine_queued", "Queued tasks per engine and lane.", "engine", "priority"),
		engineInFlight:      gauge("engine_inflight_submissions", "Submissions currently inside the admission barrier.", "engine"),
		engineWorkers:       gauge("engine_workers", "Worker count per engine.", "engine"),
		engineActiveWorkers: gauge("engine_active_workers", "Workers that have not stopped yet.", "engine"),
		engineAccepted:      gauge("engine_accepted", "Accepted submission count snapshot.", "engine"),
		engineRejected:      gauge("engine_rejected", "Rejected submission count snapshot.", "engine"),
		engineFaults:        gauge("engine_faults", "Task fault count snapshot.", "engine"),
		engineClosed:        gauge("engine_closed", "Engine admission state (1=closed, 0=open).", "engine"),
		workerExecuted:      gauge("worker_executed", "Tasks executed per worker.", "engine", "worker"),
		workerFaulted:       gauge("worker_faulted", "Tasks failed per worker.", "engine", "worker"),
		workerState:         gauge("worker_state", "Worker lifecycle state (0=idle, 1=running, 2=stopping, 3=stopped).", "engine", "worker"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.engineQueued, &p.engineInFlight, &p.engineWorkers, &p.engineActiveWorkers,
		&p.engineAccepted, &p.engineRejected, &p.engineFaults, &p.engineClosed,
		&p.workerExecuted, &p.workerFaulted, &p.workerState,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}
	return p, nil
}

// AddEngine adds or replaces an engine snapshot provider by name.
func (p *SnapshotPoller) AddEngine(name string, provider EngineSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "engine")
	p.enginesMu.Lock()
	p.engines[name] = provider
	p.enginesMu.Unlock()
}

// RemoveEngine stops exporting the named engine.
func (p *SnapshotPoller) RemoveEngine(name string) {
	if p == nil {
		return
	}
	p.enginesMu.Lock()
	delete(p.engines, normalizeLabel(name, "engine"))
	p.enginesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports one snapshot of every registered engine.
func (p *SnapshotPoller) CollectOnce() {
	p.enginesMu.RLock()
	defer p.enginesMu.RUnlock()

	for name, provider := range p.engines {
		stats := provider.Stats()
		p.engineQueued.WithLabelValues(name, "high").Set(float64(stats.QueuedHigh))
		p.engineQueued.WithLabelValues(name, "normal").Set(float64(stats.QueuedNormal))
		p.engineQueued.WithLabelValues(name, "low").Set(float64(stats.QueuedLow))
		p.engineInFlight.WithLabelValues(name).Set(float64(stats.InFlight))
		p.engineWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.engineActiveWorkers.WithLabelValues(name).Set(float64(stats.ActiveWorkers))
		p.engineAccepted.WithLabelValues(name).Set(float64(stats.Accepted))
		p.engineRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.engineFaults.WithLabelValues(name).Set(float64(stats.Faults))
		if stats.Closed {
			p.engineClosed.WithLabelValues(name).Set(1)
		} else {
			p.engineClosed.WithLabelValues(name).Set(0)
		}

		wp, ok := provider.(WorkerSnapshotProvider)
		if !ok {
			continue
		}
		for _, ws := range wp.WorkerStats() {
			worker := normalizeLabel(ws.Name, "worker")
			p.workerExecuted.WithLabelValues(name, worker).Set(float64(ws.Executed))
			p.workerFaulted.WithLabelValues(name, worker).Set(float64(ws.Faulted))
			p.workerState.WithLabelValues(name, worker).Set(float64(ws.State))
		}
	}
}

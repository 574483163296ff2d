package taskengine

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-engine/core"
)

// DefaultIdlePoll is how long an idle worker waits for a stop request before
// polling the producer again.
const DefaultIdlePoll = time.Millisecond

var workerSeq atomic.Uint64

// Worker runs tasks on one dedicated goroutine.
//
// After Start it repeatedly fetches from its producer. A fetched task runs to
// completion; a failure (error or panic) is reported to fault observers and
// the loop carries on. When the producer is empty the worker waits up to the
// idle poll interval for a stop request. On stop it drains the producer once
// more, so a stopped worker finishes every task it can still fetch before it
// exits.
type Worker struct {
	name       string
	engineName string
	idlePoll   time.Duration
	logger     core.Logger
	metrics    core.Metrics

	state    atomic.Int32 // core.ExecutorState
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	faultObservers *core.ObserverSet[core.FaultObserver]
	stopObservers  *core.ObserverSet[core.StopObserver]

	executed atomic.Int64
	faulted  atomic.Int64
}

var _ core.Executor = (*Worker)(nil)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerName sets the name used in logs, metrics and stats.
func WithWorkerName(name string) WorkerOption {
	return func(w *Worker) { w.name = name }
}

// WithWorkerIdlePoll overrides DefaultIdlePoll.
func WithWorkerIdlePoll(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.idlePoll = d
		}
	}
}

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWorkerMetrics sets the worker's metrics sink.
func WithWorkerMetrics(metrics core.Metrics) WorkerOption {
	return func(w *Worker) {
		if metrics != nil {
			w.metrics = metrics
		}
	}
}

func withWorkerEngineName(name string) WorkerOption {
	return func(w *Worker) { w.engineName = name }
}

// NewWorker creates an idle worker.
func NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		idlePoll:       DefaultIdlePoll,
		logger:         core.NewNoOpLogger(),
		metrics:        &core.NilMetrics{},
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
		faultObservers: core.NewObserverSet[core.FaultObserver](),
		stopObservers:  core.NewObserverSet[core.StopObserver](),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name == "" {
		w.name = fmt.Sprintf("worker-%d", workerSeq.Add(1))
	}
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// State returns the current lifecycle state.
func (w *Worker) State() core.ExecutorState {
	return core.ExecutorState(w.state.Load())
}

// Done is closed once the worker has stopped and notified its stop observers.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Start begins the pull loop against producer.
func (w *Worker) Start(producer core.TaskProducer) error {
	if producer == nil {
		return core.ErrNilProducer
	}
	if !w.state.CompareAndSwap(int32(core.ExecutorIdle), int32(core.ExecutorRunning)) {
		return fmt.Errorf("%w: %s is %s", core.ErrAlreadyStarted, w.name, w.State())
	}
	go w.loop(producer)
	return nil
}

// Stop asks the worker to exit once its producer runs dry. It never blocks.
// Stopping a worker that was never started moves it straight to stopped.
func (w *Worker) Stop() {
	for {
		switch core.ExecutorState(w.state.Load()) {
		case core.ExecutorIdle:
			if w.state.CompareAndSwap(int32(core.ExecutorIdle), int32(core.ExecutorStopped)) {
				w.finish()
				return
			}
		case core.ExecutorRunning:
			if w.state.CompareAndSwap(int32(core.ExecutorRunning), int32(core.ExecutorStopping)) {
				w.stopOnce.Do(func() { close(w.stopCh) })
				return
			}
		default:
			return
		}
	}
}

// AddFaultObserver registers observer for failed tasks under id.
func (w *Worker) AddFaultObserver(id core.ObserverID, observer core.FaultObserver) {
	if observer != nil {
		w.faultObservers.Add(id, observer)
	}
}

// RemoveFaultObserver unregisters the fault observer with id.
func (w *Worker) RemoveFaultObserver(id core.ObserverID) {
	w.faultObservers.Remove(id)
}

// AddStopObserver registers observer for the worker's stop under id.
func (w *Worker) AddStopObserver(id core.ObserverID, observer core.StopObserver) {
	if observer != nil {
		w.stopObservers.Add(id, observer)
	}
}

// RemoveStopObserver unregisters the stop observer with id.
func (w *Worker) RemoveStopObserver(id core.ObserverID) {
	w.stopObservers.Remove(id)
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() core.WorkerStats {
	return core.WorkerStats{
		Name:     w.name,
		State:    w.State(),
		Executed: w.executed.Load(),
		Faulted:  w.faulted.Load(),
	}
}

// loop is the worker's main loop
func (w *Worker) loop(producer core.TaskProducer) {
	w.logger.Debug("worker started", core.F("worker", w.name))

	idle := time.NewTimer(w.idlePoll)
	defer idle.Stop()

	for {
		if task, ok := producer.Fetch(); ok {
			w.execute(task)
			continue
		}

		idle.Reset(w.idlePoll)
		select {
		case <-w.stopCh:
			// Tasks accepted during the idle wait may still be queued.
			for {
				task, ok := producer.Fetch()
				if !ok {
					break
				}
				w.execute(task)
			}
			w.state.Store(int32(core.ExecutorStopped))
			w.finish()
			return
		case <-idle.C:
		}
	}
}

func (w *Worker) execute(task core.Task) {
	start := time.Now()
	err := runTask(task)
	w.metrics.RecordTaskDuration(w.engineName, w.name, time.Since(start))
	w.executed.Add(1)
	if err == nil {
		return
	}

	w.faulted.Add(1)
	w.metrics.RecordTaskFault(w.engineName, w.name)
	w.logger.Warn("task failed", core.F("worker", w.name), core.F("error", err))

	ev := core.FaultEvent{Task: task, Err: err, Source: w, At: time.Now()}
	for _, o := range w.faultObservers.Snapshot() {
		w.notify("fault", func() { o.HandleFault(ev) })
	}
}

// runTask executes task and converts a panic into a *core.PanicError.
func runTask(task core.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return task.Execute()
}

func (w *Worker) finish() {
	w.logger.Debug("worker stopped", core.F("worker", w.name), core.F("executed", w.executed.Load()))
	for _, o := range w.stopObservers.Snapshot() {
		w.notify("stop", func() { o.HandleStop(w) })
	}
	close(w.done)
}

// notify runs fn and logs, rather than propagates, an observer panic.
func (w *Worker) notify(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("observer panicked",
				core.F("worker", w.name), core.F("kind", kind), core.F("panic", r))
		}
	}()
	fn()
}

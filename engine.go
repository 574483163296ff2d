package taskengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-engine/core"
	uuid "github.com/nu7hatch/gouuid"
)

// Engine owns a fixed set of executors sharing one TaskStorage.
//
// Submit is safe from any goroutine and never blocks. Stop closes admission,
// lets the executors drain the storage and waits until all of them have
// reported that they stopped.
type Engine struct {
	name    string
	logger  core.Logger
	metrics core.Metrics

	barrier core.DrainBarrier
	storage core.TaskStorage
	workers []core.Executor

	// active counts executors that have not reported a stop yet. terminated
	// keeps a misbehaving executor from being counted twice.
	active     atomic.Int32
	terminated []atomic.Bool
	done       chan struct{}

	stopObserverID  core.ObserverID
	faultCounterID  core.ObserverID
	accepted        atomic.Int64
	rejected        atomic.Int64
	faults          atomic.Int64
	shutdownStarted atomic.Int64 // unix nanos, 0 until Stop wins the barrier
}

// laneStorage is implemented by storages that can report per-priority depth,
// such as core.PriorityScheduler.
type laneStorage interface {
	LaneLen(priority core.Priority) int
}

// NewEngine creates an engine with workerCount default workers and a
// core.PriorityScheduler, and starts the workers.
func NewEngine(workerCount int, opts ...Option) (*Engine, error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidWorkerCount, workerCount)
	}
	o := buildOptions(opts)

	workers := make([]core.Executor, workerCount)
	for i := range workers {
		workers[i] = NewWorker(
			WithWorkerName(fmt.Sprintf("%s-worker-%d", o.name, i)),
			WithWorkerIdlePoll(o.idlePoll),
			WithWorkerLogger(o.logger),
			WithWorkerMetrics(o.metrics),
			withWorkerEngineName(o.name),
		)
	}
	return newEngine(workers, core.NewPrioritySchedulerWithBurst(o.highPerNormal), o)
}

// NewEngineWithExecutors creates an engine from caller-supplied executors and
// storage, and starts every executor against that storage.
func NewEngineWithExecutors(workers []core.Executor, storage core.TaskStorage, opts ...Option) (*Engine, error) {
	if len(workers) == 0 {
		return nil, core.ErrNoExecutors
	}
	for i, w := range workers {
		if w == nil {
			return nil, fmt.Errorf("%w: index %d", core.ErrNilExecutor, i)
		}
	}
	if storage == nil {
		return nil, core.ErrNilStorage
	}
	return newEngine(append([]core.Executor(nil), workers...), storage, buildOptions(opts))
}

func newEngine(workers []core.Executor, storage core.TaskStorage, o options) (*Engine, error) {
	e := &Engine{
		name:           o.name,
		logger:         o.logger,
		metrics:        o.metrics,
		storage:        storage,
		workers:        workers,
		terminated:     make([]atomic.Bool, len(workers)),
		done:           make(chan struct{}),
		stopObserverID: core.NextObserverID(),
		faultCounterID: core.NextObserverID(),
	}
	e.active.Store(int32(len(workers)))

	for i, w := range e.workers {
		w.AddStopObserver(e.stopObserverID, core.StopObserverFunc(func(core.Executor) {
			e.onExecutorStopped(i)
		}))
		w.AddFaultObserver(e.faultCounterID, core.FaultObserverFunc(func(core.FaultEvent) {
			e.faults.Add(1)
		}))
	}

	for i, w := range e.workers {
		if err := w.Start(e.storage); err != nil {
			e.barrier.Close()
			for _, started := range e.workers[:i] {
				started.Stop()
			}
			for _, w := range e.workers {
				w.RemoveStopObserver(e.stopObserverID)
				w.RemoveFaultObserver(e.faultCounterID)
			}
			return nil, fmt.Errorf("start executor %d: %w", i, err)
		}
	}

	e.logger.Info("engine started", core.F("engine", e.name), core.F("workers", len(e.workers)))
	return e, nil
}

// Name returns the engine name used in logs and metrics.
func (e *Engine) Name() string {
	return e.name
}

// WorkerCount returns the roster size.
func (e *Engine) WorkerCount() int {
	return len(e.workers)
}

// Submit queues task with the given priority.
//
// It returns false, with no error, once shutdown has begun; the task is then
// not queued. A nil task or an unknown priority is a usage error. A typed nil
// pointer wrapped in a non-nil Task is not detected here; it is queued and
// whatever its Execute does with a nil receiver, usually a panic, is reported
// to fault observers.
func (e *Engine) Submit(task core.Task, priority core.Priority) (bool, error) {
	if task == nil {
		return false, core.ErrNilTask
	}
	if fn, ok := task.(core.TaskFunc); ok && fn == nil {
		return false, core.ErrNilTask
	}
	if !priority.Valid() {
		return false, fmt.Errorf("%w: %d", core.ErrInvalidPriority, int(priority))
	}

	if !e.barrier.TryEnter() {
		e.rejected.Add(1)
		e.metrics.RecordTaskRejected(e.name, "stopped")
		e.logger.Debug("task rejected", core.F("engine", e.name), core.F("priority", priority))
		return false, nil
	}
	defer e.barrier.Leave()

	e.storage.Submit(task, priority)
	e.accepted.Add(1)
	e.metrics.RecordTaskSubmitted(e.name, priority)
	if ls, ok := e.storage.(laneStorage); ok {
		e.metrics.RecordQueueDepth(e.name, priority, ls.LaneLen(priority))
	}
	return true, nil
}

// SubmitFunc is Submit for a plain function.
func (e *Engine) SubmitFunc(fn func() error, priority core.Priority) (bool, error) {
	if fn == nil {
		return false, core.ErrNilTask
	}
	return e.Submit(core.TaskFunc(fn), priority)
}

// Stop stops accepting tasks, waits for queued tasks to finish and for every
// executor to stop. It is safe to call any number of times from any goroutine;
// only the first call signals the executors, and every call waits.
//
// Stop must not be called from inside a task: the calling worker would wait
// for itself.
func (e *Engine) Stop() {
	_ = e.Shutdown(context.Background())
}

// Shutdown is Stop bounded by ctx. When ctx ends first it returns ctx.Err();
// the executors keep draining and Done is closed once they finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.barrier.Close() {
		e.shutdownStarted.Store(time.Now().UnixNano())
		e.logger.Info("engine stopping", core.F("engine", e.name), core.F("queued", e.queued()))
		for _, w := range e.workers {
			w.Stop()
		}
	}

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the engine. It implements io.Closer.
func (e *Engine) Close() error {
	e.Stop()
	return nil
}

// Done is closed when every executor has stopped.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// AddFaultObserver registers observer with every executor and returns the ID
// that removes it again.
func (e *Engine) AddFaultObserver(observer core.FaultObserver) core.ObserverID {
	id := core.NextObserverID()
	for _, w := range e.workers {
		w.AddFaultObserver(id, observer)
	}
	return id
}

// RemoveFaultObserver unregisters an observer added with AddFaultObserver.
func (e *Engine) RemoveFaultObserver(id core.ObserverID) {
	for _, w := range e.workers {
		w.RemoveFaultObserver(id)
	}
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() core.EngineStats {
	st := core.EngineStats{
		Name:          e.name,
		Workers:       len(e.workers),
		ActiveWorkers: int(e.active.Load()),
		InFlight:      e.barrier.InFlight(),
		Accepted:      e.accepted.Load(),
		Rejected:      e.rejected.Load(),
		Faults:        e.faults.Load(),
		Closed:        e.barrier.CloseRequested(),
	}
	if ls, ok := e.storage.(laneStorage); ok {
		st.QueuedHigh = ls.LaneLen(core.PriorityHigh)
		st.QueuedNormal = ls.LaneLen(core.PriorityNormal)
		st.QueuedLow = ls.LaneLen(core.PriorityLow)
	}
	st.Queued = e.queued()
	return st
}

// WorkerStats returns snapshots for every executor that exposes them.
func (e *Engine) WorkerStats() []core.WorkerStats {
	out := make([]core.WorkerStats, 0, len(e.workers))
	for _, w := range e.workers {
		if s, ok := w.(interface{ Stats() core.WorkerStats }); ok {
			out = append(out, s.Stats())
		}
	}
	return out
}

// RecordQueueDepth pushes the current depth of every lane to the metrics sink.
func (e *Engine) RecordQueueDepth() {
	ls, ok := e.storage.(laneStorage)
	if !ok {
		return
	}
	for _, p := range []core.Priority{core.PriorityHigh, core.PriorityNormal, core.PriorityLow} {
		e.metrics.RecordQueueDepth(e.name, p, ls.LaneLen(p))
	}
}

func (e *Engine) queued() int {
	if l, ok := e.storage.(interface{ Len() int }); ok {
		return l.Len()
	}
	return 0
}

func (e *Engine) onExecutorStopped(index int) {
	if !e.terminated[index].CompareAndSwap(false, true) {
		return
	}
	if e.active.Add(-1) != 0 {
		return
	}

	fields := []core.Field{core.F("engine", e.name)}
	if started := e.shutdownStarted.Load(); started != 0 {
		fields = append(fields, core.F("took", time.Since(time.Unix(0, started))))
	}
	e.logger.Info("engine stopped", fields...)
	close(e.done)
}

// =============================================================================
// Options
// =============================================================================

type options struct {
	name          string
	logger        core.Logger
	metrics       core.Metrics
	idlePoll      time.Duration
	highPerNormal int
}

// Option configures an Engine.
type Option func(*options)

// WithName sets the engine name. A random one is generated otherwise.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger for the engine and its default workers.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink for the engine and its default workers.
func WithMetrics(metrics core.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithIdlePollInterval sets how long idle default workers wait between polls.
func WithIdlePollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idlePoll = d
		}
	}
}

// WithHighPerNormal sets the high/normal burst of the default scheduler.
func WithHighPerNormal(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.highPerNormal = n
		}
	}
}

// WithConfig applies the name, idle poll and burst settings from cfg.
func WithConfig(cfg core.EngineConfig) Option {
	return func(o *options) {
		if cfg.Name != "" {
			o.name = cfg.Name
		}
		if cfg.IdlePollMS > 0 {
			o.idlePoll = cfg.IdlePoll()
		}
		if cfg.HighPerNormal > 0 {
			o.highPerNormal = cfg.HighPerNormal
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:        core.NewNoOpLogger(),
		metrics:       &core.NilMetrics{},
		idlePoll:      DefaultIdlePoll,
		highPerNormal: core.DefaultHighPerNormal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = generateName()
	}
	return o
}

var engineSeq atomic.Uint64

func generateName() string {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Sprintf("engine-%d", engineSeq.Add(1))
	}
	return "engine-" + id.String()[:8]
}

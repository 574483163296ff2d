package core

import (
	"sync/atomic"
	"time"
)

// =============================================================================
// TaskProducer / TaskStorage: the two sides of the task queue
// =============================================================================

// TaskProducer hands tasks to executors.
type TaskProducer interface {
	// Fetch returns the next task, or false when there is nothing to run right
	// now. A false result is not final; executors poll again.
	//
	// Fetch must be safe for concurrent use.
	Fetch() (Task, bool)
}

// TaskStorage is a TaskProducer that also accepts new tasks.
type TaskStorage interface {
	TaskProducer

	// Submit queues task with the given priority. It must be safe for
	// concurrent use and must not block.
	Submit(task Task, priority Priority)
}

// =============================================================================
// Executor: a worker that pulls tasks from a producer
// =============================================================================

// ExecutorState is the lifecycle state of an executor.
type ExecutorState int32

const (
	ExecutorIdle ExecutorState = iota
	ExecutorRunning
	ExecutorStopping
	ExecutorStopped
)

func (s ExecutorState) String() string {
	switch s {
	case ExecutorIdle:
		return "idle"
	case ExecutorRunning:
		return "running"
	case ExecutorStopping:
		return "stopping"
	case ExecutorStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Executor runs tasks pulled from a TaskProducer until asked to stop.
//
// Implementations must notify every stop observer once the executor has
// finished its last task and will not fetch again, and every fault observer
// once per failed task.
type Executor interface {
	// Start begins pulling from producer on the executor's own goroutine.
	Start(producer TaskProducer) error

	// Stop asks the executor to finish. It does not wait.
	Stop()

	AddFaultObserver(id ObserverID, observer FaultObserver)
	RemoveFaultObserver(id ObserverID)
	AddStopObserver(id ObserverID, observer StopObserver)
	RemoveStopObserver(id ObserverID)
}

// =============================================================================
// Observers
// =============================================================================

// ObserverID identifies a registered observer. IDs are unique within the process.
type ObserverID uint64

var lastObserverID atomic.Uint64

// NextObserverID allocates a fresh ObserverID.
func NextObserverID() ObserverID {
	return ObserverID(lastObserverID.Add(1))
}

// FaultEvent describes one failed task execution.
type FaultEvent struct {
	// Task is the task that failed.
	Task Task

	// Err is the error returned by Task.Execute, or a *PanicError.
	Err error

	// Source is the executor that ran the task.
	Source Executor

	At time.Time
}

// FaultObserver receives fault events. It is called synchronously from the
// executor goroutine, so it should return quickly.
type FaultObserver interface {
	HandleFault(ev FaultEvent)
}

// FaultObserverFunc adapts a function to FaultObserver.
type FaultObserverFunc func(ev FaultEvent)

// HandleFault calls f(ev).
func (f FaultObserverFunc) HandleFault(ev FaultEvent) { f(ev) }

// StopObserver is notified once when an executor has stopped.
type StopObserver interface {
	HandleStop(source Executor)
}

// StopObserverFunc adapts a function to StopObserver.
type StopObserverFunc func(source Executor)

// HandleStop calls f(source).
func (f StopObserverFunc) HandleStop(source Executor) { f(source) }

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting engine metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskSubmitted records that a task was admitted to the queue.
	RecordTaskSubmitted(engine string, priority Priority)

	// RecordTaskRejected records that a submission was refused (e.g., during shutdown).
	RecordTaskRejected(engine string, reason string)

	// RecordTaskDuration records how long a task took to execute on a worker.
	RecordTaskDuration(engine string, worker string, duration time.Duration)

	// RecordTaskFault records that a task failed or panicked.
	RecordTaskFault(engine string, worker string)

	// RecordQueueDepth records the current depth of one lane.
	RecordQueueDepth(engine string, priority Priority, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskSubmitted(engine string, priority Priority)                     {}
func (m *NilMetrics) RecordTaskRejected(engine string, reason string)                          {}
func (m *NilMetrics) RecordTaskDuration(engine string, worker string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskFault(engine string, worker string)                             {}
func (m *NilMetrics) RecordQueueDepth(engine string, priority Priority, depth int)            {}

package taskengine

import "github.com/Swind/go-task-engine/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskengine package for most use cases.

// Task is the unit of work
type Task = core.Task

// TaskFunc adapts a func() error to Task
type TaskFunc = core.TaskFunc

// Priority selects the lane a task is queued on
type Priority = core.Priority

// FaultEvent describes one failed task execution
type FaultEvent = core.FaultEvent

// FaultObserver receives fault events
type FaultObserver = core.FaultObserver

// FaultObserverFunc adapts a function to FaultObserver
type FaultObserverFunc = core.FaultObserverFunc

// Executor is the interface implemented by workers
type Executor = core.Executor

// TaskStorage is the queue shared by an engine's executors
type TaskStorage = core.TaskStorage

// Priority constants
const (
	PriorityLow    = core.PriorityLow
	PriorityNormal = core.PriorityNormal
	PriorityHigh   = core.PriorityHigh
)

// NewPriorityScheduler creates the default weighted three-lane storage.
func NewPriorityScheduler() *core.PriorityScheduler {
	return core.NewPriorityScheduler()
}

package core

// WorkerStats represents runtime observability state for one worker.
type WorkerStats struct {
	Name     string
	State    ExecutorState
	Executed int64
	Faulted  int64
}

// EngineStats represents runtime observability state for an engine.
type EngineStats struct {
	Name          string
	Workers       int
	ActiveWorkers int
	Queued        int
	QueuedHigh    int
	QueuedNormal  int
	QueuedLow     int
	InFlight      int
	Accepted      int64
	Rejected      int64
	Faults        int64
	Closed        bool
}

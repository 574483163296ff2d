// Package taskengine provides a small in-process task execution engine.
//
// A fixed set of workers, each on its own goroutine, pull tasks from a shared
// three-lane priority queue. Submission is lock-free and is gated by a drain
// barrier, so stopping the engine atomically refuses new work while every
// task that was already accepted still runs.
//
// # Quick Start
//
//	engine, err := taskengine.NewEngine(4)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	engine.SubmitFunc(func() error {
//		// Your code here
//		return nil
//	}, taskengine.PriorityNormal)
//
// # Key Concepts
//
// Priority: tasks go to the High, Normal or Low lane. Up to three High tasks
// run for every Normal task while both lanes have work; High tasks keep
// running when the Normal lane is empty; Low tasks run only when both higher
// lanes are empty. Each lane is FIFO.
//
// Faults: a task that returns an error or panics is reported once to every
// fault observer registered with AddFaultObserver and is not retried. The
// worker carries on with the next task.
//
// Shutdown: Stop closes admission, waits for in-flight submissions, lets the
// workers drain the queue and returns when every worker has stopped. Submit
// returns false from then on. Stop may be called any number of times.
package taskengine

package taskengine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-task-engine/core"
)

// countingProducer wraps a scheduler and counts Fetch calls.
type countingProducer struct {
	*core.PriorityScheduler
	fetches atomic.Int64
}

func (p *countingProducer) Fetch() (core.Task, bool) {
	p.fetches.Add(1)
	return p.PriorityScheduler.Fetch()
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: timed out", what)
	}
}

func TestWorker_ExecutesTaskOnce(t *testing.T) {
	// Arrange
	producer := &countingProducer{PriorityScheduler: core.NewPriorityScheduler()}
	var runs atomic.Int32
	ran := make(chan struct{})
	producer.Submit(core.TaskFunc(func() error {
		runs.Add(1)
		close(ran)
		return nil
	}), core.PriorityNormal)

	w := NewWorker()

	// Act
	if err := w.Start(producer); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitClosed(t, ran, "task run")
	time.Sleep(5 * time.Millisecond)
	w.Stop()
	waitClosed(t, w.Done(), "worker stop")

	// Assert
	if got := runs.Load(); got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
	if producer.fetches.Load() < 2 {
		t.Errorf("Fetch called %d times, want at least 2", producer.fetches.Load())
	}
	if st := w.Stats(); st.Executed != 1 || st.Faulted != 0 || st.State != core.ExecutorStopped {
		t.Errorf("Stats() = %+v", st)
	}
}

// TestWorker_FaultEvent verifies a failing task is reported with its source
// Given: A task that returns an error and a registered fault observer
// When: The worker runs it
// Then: The observer gets the task, the error and the worker itself as source
func TestWorker_FaultEvent(t *testing.T) {
	// Arrange
	boom := errors.New("boom")
	task := &errTask{err: boom}
	sched := core.NewPriorityScheduler()
	sched.Submit(task, core.PriorityHigh)

	w := NewWorker(WithWorkerName("w-fault"))
	events := make(chan core.FaultEvent, 1)
	w.AddFaultObserver(core.NextObserverID(), core.FaultObserverFunc(func(ev core.FaultEvent) {
		events <- ev
	}))

	// Act
	if err := w.Start(sched); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	// Assert
	select {
	case ev := <-events:
		if ev.Task != task {
			t.Errorf("ev.Task = %v, want %v", ev.Task, task)
		}
		if !errors.Is(ev.Err, boom) {
			t.Errorf("ev.Err = %v, want %v", ev.Err, boom)
		}
		if ev.Source != core.Executor(w) {
			t.Errorf("ev.Source = %v, want the worker", ev.Source)
		}
		if ev.At.IsZero() {
			t.Error("ev.At is zero")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fault event received")
	}
}

type errTask struct {
	err error
}

func (t *errTask) Execute() error { return t.err }

// TestWorker_PanicBecomesFault verifies panics are recovered and the loop continues
// Given: A panicking task followed by a normal task
// When: The worker runs both
// Then: The panic is reported as *core.PanicError and the second task still runs
func TestWorker_PanicBecomesFault(t *testing.T) {
	// Arrange
	sched := core.NewPriorityScheduler()
	sched.Submit(core.TaskFunc(func() error { panic("kaboom") }), core.PriorityHigh)
	after := make(chan struct{})
	sched.Submit(core.TaskFunc(func() error {
		close(after)
		return nil
	}), core.PriorityHigh)

	w := NewWorker()
	var faultErr atomic.Value
	w.AddFaultObserver(core.NextObserverID(), core.FaultObserverFunc(func(ev core.FaultEvent) {
		faultErr.Store(ev.Err)
	}))

	// Act
	if err := w.Start(sched); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitClosed(t, after, "task after panic")
	w.Stop()
	waitClosed(t, w.Done(), "worker stop")

	// Assert
	var pe *core.PanicError
	err, _ := faultErr.Load().(error)
	if !errors.As(err, &pe) {
		t.Fatalf("fault error = %v, want *core.PanicError", err)
	}
	if pe.Value != "kaboom" || len(pe.Stack) == 0 {
		t.Errorf("PanicError = {%v, %d bytes of stack}", pe.Value, len(pe.Stack))
	}
	if st := w.Stats(); st.Executed != 2 || st.Faulted != 1 {
		t.Errorf("Stats() = %+v, want 2 executed and 1 faulted", st)
	}
}

// TestWorker_StopDrainsProducer verifies queued tasks finish before the worker stops
func TestWorker_StopDrainsProducer(t *testing.T) {
	sched := core.NewPriorityScheduler()
	var runs atomic.Int32
	for i := 0; i < 50; i++ {
		sched.Submit(core.TaskFunc(func() error {
			runs.Add(1)
			return nil
		}), core.Priority(i%3))
	}

	w := NewWorker()
	if err := w.Start(sched); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()
	waitClosed(t, w.Done(), "worker stop")

	if got := runs.Load(); got != 50 {
		t.Errorf("ran %d tasks before stopping, want 50", got)
	}
}

// TestWorker_StopNotifiesOnce verifies stop observers fire once after repeated Stop calls
func TestWorker_StopNotifiesOnce(t *testing.T) {
	w := NewWorker()
	var stops atomic.Int32
	var source atomic.Value
	w.AddStopObserver(core.NextObserverID(), core.StopObserverFunc(func(src core.Executor) {
		stops.Add(1)
		source.Store(src)
	}))
	removed := core.NextObserverID()
	w.AddStopObserver(removed, core.StopObserverFunc(func(core.Executor) {
		t.Error("removed stop observer was called")
	}))
	w.RemoveStopObserver(removed)

	if err := w.Start(core.NewPriorityScheduler()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
	waitClosed(t, w.Done(), "worker stop")

	if got := stops.Load(); got != 1 {
		t.Errorf("stop observer called %d times, want 1", got)
	}
	if source.Load() != core.Executor(w) {
		t.Error("stop observer source is not the worker")
	}
	if w.State() != core.ExecutorStopped {
		t.Errorf("State() = %s, want stopped", w.State())
	}
}

// TestWorker_StopBeforeStart verifies an idle worker stops without a loop
func TestWorker_StopBeforeStart(t *testing.T) {
	w := NewWorker()
	var stops atomic.Int32
	w.AddStopObserver(core.NextObserverID(), core.StopObserverFunc(func(core.Executor) {
		stops.Add(1)
	}))

	w.Stop()

	waitClosed(t, w.Done(), "worker stop")
	if stops.Load() != 1 {
		t.Errorf("stop observer called %d times, want 1", stops.Load())
	}
	if err := w.Start(core.NewPriorityScheduler()); !errors.Is(err, core.ErrAlreadyStarted) {
		t.Errorf("Start() after Stop() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestWorker_StartErrors(t *testing.T) {
	w := NewWorker()
	if err := w.Start(nil); !errors.Is(err, core.ErrNilProducer) {
		t.Errorf("Start(nil) error = %v, want ErrNilProducer", err)
	}
	if err := w.Start(core.NewPriorityScheduler()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()
	if err := w.Start(core.NewPriorityScheduler()); !errors.Is(err, core.ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

// TestWorker_ObserverPanicIsContained verifies a panicking observer does not kill the worker
func TestWorker_ObserverPanicIsContained(t *testing.T) {
	sched := core.NewPriorityScheduler()
	sched.Submit(&errTask{err: errors.New("first")}, core.PriorityNormal)
	done := make(chan struct{})
	sched.Submit(core.TaskFunc(func() error {
		close(done)
		return nil
	}), core.PriorityNormal)

	w := NewWorker()
	w.AddFaultObserver(core.NextObserverID(), core.FaultObserverFunc(func(core.FaultEvent) {
		panic("observer bug")
	}))
	if err := w.Start(sched); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitClosed(t, done, "task after observer panic")
	w.Stop()
	waitClosed(t, w.Done(), "worker stop")
}

func TestWorker_DefaultName(t *testing.T) {
	a, b := NewWorker(), NewWorker()
	if a.Name() == "" || a.Name() == b.Name() {
		t.Errorf("names = %q, %q; want distinct non-empty names", a.Name(), b.Name())
	}
	if got := NewWorker(WithWorkerName("io")).Name(); got != "io" {
		t.Errorf("Name() = %q, want io", got)
	}
}

// TestWorker_StopRunsTaskQueuedWhileIdle verifies a stop during the idle wait still drains
// Given: A started worker with a long idle poll that has already found the producer empty
// When: A task is queued and Stop is called before the poll interval ends
// Then: The task runs before the worker reports that it stopped
func TestWorker_StopRunsTaskQueuedWhileIdle(t *testing.T) {
	// Arrange
	producer := &countingProducer{PriorityScheduler: core.NewPriorityScheduler()}
	w := NewWorker(WithWorkerIdlePoll(time.Hour))
	if err := w.Start(producer); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for producer.fetches.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never polled the producer")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	var ran atomic.Bool
	producer.Submit(core.TaskFunc(func() error {
		ran.Store(true)
		return nil
	}), core.PriorityNormal)

	// Act
	w.Stop()
	waitClosed(t, w.Done(), "worker stop")

	// Assert
	if !ran.Load() {
		t.Error("task queued during the idle wait was dropped")
	}
	if producer.Len() != 0 {
		t.Errorf("Len() = %d after stop, want 0", producer.Len())
	}
}

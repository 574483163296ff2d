package core

import "sync/atomic"

// laneNode is a link in a lane. The node at lane.head is a sentinel whose task
// has already been handed out.
type laneNode struct {
	task Task
	next atomic.Pointer[laneNode]
}

// lane is an unbounded FIFO of tasks with lock-free push and pop
// (Michael-Scott queue). Any number of goroutines may push concurrently.
type lane struct {
	head atomic.Pointer[laneNode]
	tail atomic.Pointer[laneNode]
	size atomic.Int64
}

func newLane() *lane {
	l := &lane{}
	sentinel := &laneNode{}
	l.head.Store(sentinel)
	l.tail.Store(sentinel)
	return l
}

func (l *lane) push(t Task) {
	n := &laneNode{task: t}
	// Count first so Len never dips below the number of poppable tasks.
	l.size.Add(1)
	for {
		tail := l.tail.Load()
		next := tail.next.Load()
		if tail != l.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging behind; help it along.
			l.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			l.tail.CompareAndSwap(tail, n)
			return
		}
	}
}

func (l *lane) pop() (Task, bool) {
	for {
		head := l.head.Load()
		tail := l.tail.Load()
		next := head.next.Load()
		if head != l.head.Load() {
			continue
		}
		if next == nil {
			return nil, false
		}
		if head == tail {
			l.tail.CompareAndSwap(tail, next)
			continue
		}
		if l.head.CompareAndSwap(head, next) {
			t := next.task
			// next is the new sentinel; drop the reference so the task can be collected.
			next.task = nil
			l.size.Add(-1)
			return t, true
		}
	}
}

func (l *lane) isEmpty() bool {
	return l.head.Load().next.Load() == nil
}

func (l *lane) len() int {
	if n := l.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}

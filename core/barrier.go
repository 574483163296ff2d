package core

import (
	"runtime"
	"sync/atomic"
)

// barrierClosed is the terminal value of DrainBarrier.state.
const barrierClosed = -1

// DrainBarrier gates operations that must not start once shutdown begins.
//
// Any number of operations may be inside the barrier while it is open. Close
// waits for the ones already inside to leave and then shuts the barrier for
// good; after a close has been requested no operation can enter.
//
// The zero value is an open barrier. No lock is taken on any path.
type DrainBarrier struct {
	// state is the number of operations inside (>= 0), or barrierClosed.
	state atomic.Int32

	// closeRequested stops new entries while Close is still waiting for the
	// count to reach zero, so a steady stream of TryEnter calls cannot starve it.
	closeRequested atomic.Bool
}

// TryEnter registers one operation. It returns false if the barrier is closed
// or a close has been requested.
func (b *DrainBarrier) TryEnter() bool {
	for {
		old := b.state.Load()
		if old < 0 || b.closeRequested.Load() {
			return false
		}
		if b.state.CompareAndSwap(old, old+1) {
			return true
		}
	}
}

// Leave deregisters one operation. Once the barrier is closed it does nothing.
func (b *DrainBarrier) Leave() {
	for {
		old := b.state.Load()
		if old < 0 || b.state.CompareAndSwap(old, old-1) {
			return
		}
	}
}

// Close requests permanent closure and spins until every operation inside has
// left. It returns true only for the call that performed the transition to
// closed; every later or concurrent call returns false.
func (b *DrainBarrier) Close() bool {
	b.closeRequested.Store(true)
	for {
		if b.state.CompareAndSwap(0, barrierClosed) {
			return true
		}
		if b.state.Load() == barrierClosed {
			return false
		}
		runtime.Gosched()
	}
}

// IsClosed reports whether the barrier reached its terminal state.
func (b *DrainBarrier) IsClosed() bool {
	return b.state.Load() == barrierClosed
}

// CloseRequested reports whether Close has been called at least once.
func (b *DrainBarrier) CloseRequested() bool {
	return b.closeRequested.Load()
}

// InFlight returns the number of operations currently inside the barrier.
func (b *DrainBarrier) InFlight() int {
	if n := b.state.Load(); n > 0 {
		return int(n)
	}
	return 0
}

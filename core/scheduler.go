package core

import "sync"

// DefaultHighPerNormal is how many high priority tasks may be handed out
// before a waiting normal priority task gets its turn.
const DefaultHighPerNormal = 3

// PriorityScheduler is the default TaskStorage. It keeps one FIFO lane per
// priority and hands tasks out by these rules:
//
//   - up to DefaultHighPerNormal high tasks are issued for every normal task
//     while both lanes have work;
//   - high tasks keep flowing when the normal lane is empty;
//   - low tasks are issued only when both higher lanes are empty.
//
// Submit is lock-free. Fetch serializes the cross-lane decision under a
// single mutex so the high streak counter stays consistent.
type PriorityScheduler struct {
	lanes [3]*lane // indexed by Priority

	mu         sync.Mutex
	burst      int
	highStreak int // high tasks issued since the last normal one
}

var _ TaskStorage = (*PriorityScheduler)(nil)

// NewPriorityScheduler creates a scheduler with the default 3:1 high/normal ratio.
func NewPriorityScheduler() *PriorityScheduler {
	return NewPrioritySchedulerWithBurst(DefaultHighPerNormal)
}

// NewPrioritySchedulerWithBurst creates a scheduler that issues up to burst
// high tasks per normal task. Values below 1 are treated as 1.
func NewPrioritySchedulerWithBurst(burst int) *PriorityScheduler {
	if burst < 1 {
		burst = 1
	}
	s := &PriorityScheduler{burst: burst}
	for i := range s.lanes {
		s.lanes[i] = newLane()
	}
	return s
}

// Submit appends task to the lane for priority. Unknown priorities go to the
// low lane.
func (s *PriorityScheduler) Submit(task Task, priority Priority) {
	s.laneFor(priority).push(task)
}

// Fetch returns the next task according to the weighted policy, or false if
// every lane is empty right now.
func (s *PriorityScheduler) Fetch() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	high := s.lanes[PriorityHigh]
	if s.highStreak < s.burst {
		if t, ok := high.pop(); ok {
			s.highStreak++
			return t, true
		}
	}
	if t, ok := s.lanes[PriorityNormal].pop(); ok {
		s.highStreak = 0
		return t, true
	}
	if s.highStreak >= s.burst {
		// Normal lane is empty, so high work is not held back.
		if t, ok := high.pop(); ok {
			return t, true
		}
	}
	return s.lanes[PriorityLow].pop()
}

// Len returns the number of queued tasks across all lanes.
func (s *PriorityScheduler) Len() int {
	n := 0
	for _, l := range s.lanes {
		n += l.len()
	}
	return n
}

// LaneLen returns the number of tasks queued with the given priority.
func (s *PriorityScheduler) LaneLen(priority Priority) int {
	return s.laneFor(priority).len()
}

// HighPerNormal returns the configured burst size.
func (s *PriorityScheduler) HighPerNormal() int {
	return s.burst
}

func (s *PriorityScheduler) laneFor(priority Priority) *lane {
	if !priority.Valid() {
		return s.lanes[PriorityLow]
	}
	return s.lanes[priority]
}

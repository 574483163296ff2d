package core

import (
	"fmt"
	"strings"
)

// Task is the unit of work executed by a worker.
// Execute may fail; a failure is reported to fault observers and the task is
// not retried.
type Task interface {
	Execute() error
}

// TaskFunc adapts an ordinary function to the Task interface.
//
// Func values are not comparable, so observers that need to tell tasks apart
// should submit pointer tasks instead.
type TaskFunc func() error

// Execute calls f().
func (f TaskFunc) Execute() error {
	return f()
}

// =============================================================================
// Priority
// =============================================================================

// Priority selects the lane a task is queued on. It is attached at submission
// time only; a task has no intrinsic priority.
type Priority int

const (
	// PriorityLow tasks run only when the higher lanes are empty.
	PriorityLow Priority = iota

	// PriorityNormal tasks get one slot after every burst of high tasks.
	PriorityNormal

	// PriorityHigh tasks run first, up to the burst limit per normal task.
	PriorityHigh
)

// Valid reports whether p is one of the three known priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts "low", "normal" or "high" (any case) into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

package core

import (
	"errors"
	"fmt"
)

// Usage errors. They are returned synchronously and never swallowed.
var (
	ErrNilTask            = errors.New("taskengine: task is nil")
	ErrInvalidPriority    = errors.New("taskengine: invalid priority")
	ErrInvalidWorkerCount = errors.New("taskengine: worker count must be greater than zero")
	ErrNoExecutors        = errors.New("taskengine: no executors provided")
	ErrNilExecutor        = errors.New("taskengine: executor is nil")
	ErrNilStorage         = errors.New("taskengine: task storage is nil")
	ErrNilProducer        = errors.New("taskengine: task producer is nil")
	ErrAlreadyStarted     = errors.New("taskengine: executor already started")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

package core

import "errors"

var (
	// ErrEmpty is returned by non-blocking reads on an empty queue.
	ErrEmpty = errors.New("container is empty")

	// ErrTimeout is returned when a bounded wait expires before an item arrives.
	ErrTimeout = errors.New("wait timeout occurred")

	// ErrPoolStopped is returned by Invoke once the pool is stopping or stopped.
	ErrPoolStopped = errors.New("thread pool is stopped")

	// ErrInvokeDenied is returned by Invoke while a drain refuses new work.
	ErrInvokeDenied = errors.New("thread pool is draining and denies new work")

	// ErrAlreadyRunning is returned when Execute is called on a Threader that was already started.
	ErrAlreadyRunning = errors.New("threader already started")

	// ErrNotStarted is returned when joining a Threader that never executed a task.
	ErrNotStarted = errors.New("threader not started")

	// ErrInvalidSize indicates a thread count or queue bound that the pool cannot honor.
	ErrInvalidSize = errors.New("invalid pool size")
)

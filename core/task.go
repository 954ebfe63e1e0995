package core

import "context"

// Task is the unit of work executed by a Threader or a ThreadPool worker.
//
// Execute receives the Threader running it. A returned error (or a panic) is
// a task failure; pools count and log failures but never propagate them.
type Task interface {
	Execute(ctx context.Context, th *Threader) error
}

// TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func(ctx context.Context, th *Threader) error

// Execute calls f(ctx, th).
func (f TaskFunc) Execute(ctx context.Context, th *Threader) error {
	return f(ctx, th)
}

// Disposable is implemented by tasks that hold resources. A pool disposes an
// Owned task exactly once, after it ran, failed, or was discarded.
type Disposable interface {
	Dispose()
}

// =============================================================================
// Ownership: who is responsible for a submitted task after it runs
// =============================================================================

type Ownership int

const (
	// Borrowed tasks stay the caller's responsibility.
	Borrowed Ownership = iota

	// Owned tasks are handed to the pool, which disposes them.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

func dispose(task Task, ownership Ownership) {
	if ownership != Owned {
		return
	}
	if d, ok := task.(Disposable); ok {
		d.Dispose()
	}
}

// namedTask is a queued pool entry.
type namedTask struct {
	task      Task
	name      string
	ownership Ownership
	sequence  uint64
}

// TaskInfo describes a queued or in-flight pool entry for diagnostics.
type TaskInfo struct {
	Name      string
	Sequence  uint64
	Ownership Ownership
	Running   bool
}

// =============================================================================
// Context Helper
// =============================================================================
type threaderKeyType struct{}

var threaderKey threaderKeyType

// CurrentThreader retrieves the Threader executing the task from its context.
func CurrentThreader(ctx context.Context) *Threader {
	if v := ctx.Value(threaderKey); v != nil {
		return v.(*Threader)
	}
	return nil
}

package core

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
)

// ThreadState describes whether a Threader is executing its task.
type ThreadState int

const (
	NotRunning ThreadState = iota
	Running
)

func (s ThreadState) String() string {
	switch s {
	case NotRunning:
		return "not running"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Threader runs exactly one Task on a dedicated OS thread.
//
// The goroutine started by Execute stays locked to its thread until the task
// returns, so the thread id reported by ID is stable for the task's lifetime.
type Threader struct {
	mu      sync.Mutex
	name    string
	tid     int
	state   ThreadState
	started bool
	err     error

	ctx         context.Context
	cancel      context.CancelFunc
	interrupted atomic.Bool

	ready  chan struct{}
	done   chan struct{}
	logger Logger
}

// NewThreader creates an idle Threader. Nothing runs until Execute.
func NewThreader(name string) *Threader {
	return newThreader(name, nil)
}

func newThreader(name string, logger Logger) *Threader {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &Threader{
		name:   name,
		tid:    -1,
		logger: logger,
	}
}

// Execute starts task on a new thread and returns once the thread id is known.
// A Threader runs at most one task; later calls return ErrAlreadyRunning.
func (t *Threader) Execute(task Task) error {
	if task == nil {
		return errors.New("threader: nil task")
	}

	t.mu.Lock()
	if t.started {
		name := t.name
		t.mu.Unlock()
		return errors.Wrapf(ErrAlreadyRunning, "execute on threader %q", name)
	}
	t.started = true
	t.state = Running
	ctx, cancel := context.WithCancel(context.Background())
	t.ctx = context.WithValue(ctx, threaderKey, t)
	t.cancel = cancel
	t.ready = make(chan struct{})
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run(task)
	<-t.ready
	return nil
}

func (t *Threader) run(task Task) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t.mu.Lock()
	t.tid = currentThreadID()
	ctx := t.ctx
	t.mu.Unlock()
	close(t.ready)

	err := t.invoke(ctx, task)
	if err != nil {
		t.logger.Error("threader task failed", F("threader", t.Name()), F("error", err))
	}

	t.mu.Lock()
	t.err = err
	t.state = NotRunning
	t.mu.Unlock()

	t.cancel()
	close(t.done)
}

func (t *Threader) invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = recovery.HandlePanicWithError(p, nil, fmt.Sprintf("threader %q", t.Name()))
		}
	}()
	return task.Execute(ctx, t)
}

// Join blocks until the task returns. A Threader joining itself returns
// immediately.
func (t *Threader) Join() error {
	return t.JoinContext(context.Background())
}

// JoinContext is Join bounded by ctx.
func (t *Threader) JoinContext(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return errors.Wrapf(ErrNotStarted, "join threader %q", t.name)
	}
	done, tid := t.done, t.tid
	t.mu.Unlock()

	select {
	case <-done:
		return nil
	default:
	}

	// Only the task's own goroutine can observe the locked thread's id.
	if tid == currentThreadID() {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the task has returned.
func (t *Threader) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// State reports whether the task is executing.
func (t *Threader) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsRunning is shorthand for State() == Running.
func (t *Threader) IsRunning() bool {
	return t.State() == Running
}

// Err returns the task's error, or the recovered panic, once it finished.
func (t *Threader) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Interrupt asks the task to stop by cancelling its context. Tasks that do
// not watch ctx or Interrupted keep running.
func (t *Threader) Interrupt() {
	t.interrupted.Store(true)

	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Interrupted reports whether Interrupt was called.
func (t *Threader) Interrupted() bool {
	return t.interrupted.Load()
}

// ID returns the OS thread id as a string, or "" before Execute.
func (t *Threader) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tid < 0 {
		return ""
	}
	return strconv.Itoa(t.tid)
}

// Name returns the current display name.
func (t *Threader) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetName changes the display name. Pool workers rename themselves after the
// task they are running.
func (t *Threader) SetName(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

// Yield lets other goroutines run.
func (t *Threader) Yield() {
	runtime.Gosched()
}

// Sleep pauses the calling thread for d.
func (t *Threader) Sleep(d time.Duration) {
	time.Sleep(d)
}

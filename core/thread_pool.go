package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
)

// ThreadPool runs submitted tasks on a bounded set of worker Threaders.
//
// Workers are created lazily, one per admission, until maxThreads exist; they
// are never retired before Stop. Admission is FIFO. At most queueSize tasks
// wait for a worker; anything beyond that overflows and is discarded.
type ThreadPool struct {
	name string

	mu              sync.Mutex
	threadAvailable *Condition
	needThread      *Condition
	allStopped      *Condition
	stopping        *Condition

	state       PoolState
	drainPolicy DrainPolicy
	drainers    int
	quit        bool

	pending  *queue.Queue
	inFlight map[uint64]*namedTask
	sequence uint64

	maxThreads int
	queueSize  int
	allocated  int
	active     int
	spawning   int

	completed     uint64
	overflowed    uint64
	discarded     uint64
	taskErrors    int
	generalErrors int

	ownsTasks       bool
	workers         *ThreaderGroup
	logger          Logger
	metrics         Metrics
	failureHandler  FailureHandler
	rejectedHandler RejectedTaskHandler
}

// NewThreadPool creates a pool with no workers. A queueSize of 0 means twice
// maxThreads. It panics if maxThreads is not positive or queueSize is negative.
func NewThreadPool(maxThreads, queueSize int, config *PoolConfig) *ThreadPool {
	if maxThreads <= 0 {
		panic(fmt.Sprintf("core: ThreadPool requires maxThreads > 0, got %d", maxThreads))
	}
	if queueSize < 0 {
		panic(fmt.Sprintf("core: ThreadPool requires queueSize >= 0, got %d", queueSize))
	}
	if queueSize == 0 {
		queueSize = 2 * maxThreads
	}

	cfg := config.withDefaults()
	p := &ThreadPool{
		name:            cfg.Name,
		pending:         queue.New(),
		inFlight:        make(map[uint64]*namedTask),
		maxThreads:      maxThreads,
		queueSize:       queueSize,
		ownsTasks:       cfg.OwnsTasks,
		workers:         NewThreaderGroup(cfg.Logger),
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		failureHandler:  cfg.FailureHandler,
		rejectedHandler: cfg.RejectedTaskHandler,
	}
	p.threadAvailable = NewCondition(&p.mu)
	p.needThread = NewCondition(&p.mu)
	p.allStopped = NewCondition(&p.mu)
	p.stopping = NewCondition(&p.mu)
	return p
}

// =============================================================================
// Admission
// =============================================================================

// Invoke submits task with the pool's default ownership.
func (p *ThreadPool) Invoke(task Task, name string) (AdmissionResult, error) {
	ownership := Borrowed
	if p.ownsTasks {
		ownership = Owned
	}
	return p.InvokeWithOwnership(task, name, ownership)
}

// InvokeWithOwnership submits task. A full pool is not an error: the task is
// discarded (and disposed when Owned) and the result has Overflow set. When an
// error is returned the pool never took the task and the caller keeps it.
func (p *ThreadPool) InvokeWithOwnership(task Task, name string, ownership Ownership) (AdmissionResult, error) {
	if task == nil {
		return AdmissionResult{}, errors.Errorf("invoke %q on pool %s: nil task", name, p.name)
	}

	p.mu.Lock()
	for {
		if p.state == PoolStopping || p.state == PoolStopped {
			res := p.admissionLocked()
			p.mu.Unlock()
			p.metrics.RecordTaskRejected(p.name, "stopped")
			return res, errors.Wrapf(ErrPoolStopped, "invoke %q on pool %s", name, p.name)
		}
		if p.state != PoolDraining || p.drainPolicy == DrainAllowInvoke {
			break
		}
		if p.drainPolicy == DrainDenyInvoke {
			res := p.admissionLocked()
			p.mu.Unlock()
			p.metrics.RecordTaskRejected(p.name, "denied")
			return res, errors.Wrapf(ErrInvokeDenied, "invoke %q on pool %s", name, p.name)
		}
		p.threadAvailable.Wait()
	}

	queued := p.pending.Length()
	admitted, spawn := false, false
	switch {
	case queued+p.active < p.allocated:
		admitted = true
	case queued < p.queueSize:
		admitted = true
		if p.allocated < p.maxThreads {
			p.allocated++
			p.spawning++
			spawn = true
		}
	}

	if !admitted {
		p.overflowed++
		res := p.admissionLocked()
		res.Overflow = true
		p.mu.Unlock()

		dispose(task, ownership)
		p.logger.Error("thread pool overflow, task discarded",
			F("pool", p.name), F("task", name),
			F("active", res.Active), F("allocated", res.Allocated),
			F("queued", res.Queued), F("queue_size", res.QueueSize))
		p.metrics.RecordTaskRejected(p.name, "overflow")
		p.rejectedHandler.HandleRejectedTask(p.name, name, "overflow")
		return res, nil
	}

	p.sequence++
	p.pending.Add(&namedTask{task: task, name: name, ownership: ownership, sequence: p.sequence})
	res := p.admissionLocked()
	p.mu.Unlock()

	if spawn {
		p.spawnWorker()
	}
	p.needThread.NotifyAll()
	p.metrics.RecordQueueDepth(p.name, res.Queued)
	return res, nil
}

func (p *ThreadPool) admissionLocked() AdmissionResult {
	return AdmissionResult{
		Active:     p.active,
		Allocated:  p.allocated,
		MaxThreads: p.maxThreads,
		Queued:     p.pending.Length(),
		QueueSize:  p.queueSize,
	}
}

// spawnWorker starts the worker reserved by an admission. Stop waits for
// every reserved worker to exist before joining the group.
func (p *ThreadPool) spawnWorker() {
	name := fmt.Sprintf("%s-worker", p.name)
	_, size, err := p.workers.CreateThreader(TaskFunc(p.work), name)

	p.mu.Lock()
	p.spawning--
	if err != nil {
		p.allocated--
		p.generalErrors++
	}
	p.mu.Unlock()
	p.threadAvailable.NotifyAll()

	if err != nil {
		p.logger.Error("failed to start pool worker", F("pool", p.name), F("error", err))
	} else {
		p.logger.Debug("pool worker started", F("pool", p.name), F("workers", size))
	}
}

// =============================================================================
// Workers
// =============================================================================

func (p *ThreadPool) work(ctx context.Context, th *Threader) error {
	p.mu.Lock()
	for !p.quit {
		if p.state == PoolPaused || p.pending.Length() == 0 {
			p.needThread.Wait()
			continue
		}

		entry := p.pending.Remove().(*namedTask)
		p.active++
		p.inFlight[entry.sequence] = entry
		p.mu.Unlock()

		err := p.runTask(ctx, th, entry)

		p.mu.Lock()
		p.active--
		p.completed++
		if err != nil {
			p.taskErrors++
		}
		delete(p.inFlight, entry.sequence)
		p.mu.Unlock()
		p.threadAvailable.NotifyAll()
		p.mu.Lock()
	}
	p.mu.Unlock()
	p.threadAvailable.NotifyAll()
	return nil
}

func (p *ThreadPool) runTask(ctx context.Context, th *Threader, entry *namedTask) (err error) {
	th.SetName(entry.name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = recovery.HandlePanicWithError(r, nil, fmt.Sprintf("pool %s task %q", p.name, entry.name))
		}
		dispose(entry.task, entry.ownership)
		p.metrics.RecordTaskDuration(p.name, time.Since(start))
		if err != nil {
			p.logger.Error("pool task failed",
				F("pool", p.name), F("task", entry.name), F("threader", th.ID()), F("error", err))
			p.metrics.RecordTaskFailure(p.name, err)
			p.failureHandler.HandleTaskFailure(p.name, entry.name, err)
		}
	}()

	return entry.task.Execute(ctx, th)
}

// =============================================================================
// Drain, pause and stop
// =============================================================================

// Wait unpauses the pool and blocks until nothing is queued or running.
// policy decides what concurrent Invoke calls do meanwhile. Calling Wait from
// a task running on this pool never returns.
func (p *ThreadPool) Wait(policy DrainPolicy) {
	_ = p.WaitContext(context.Background(), policy)
}

// WaitContext is Wait bounded by ctx. The pool leaves the draining state when
// the last concurrent drain returns, whether or not it finished.
func (p *ThreadPool) WaitContext(ctx context.Context, policy DrainPolicy) error {
	p.mu.Lock()
	entered := p.beginDrainLocked(policy)
	p.mu.Unlock()
	p.needThread.NotifyAll()

	p.mu.Lock()
	defer p.mu.Unlock()
	if entered {
		defer p.endDrainLocked()
	}

	for p.pending.Length()+p.active > 0 {
		if err := p.threadAvailable.WaitContext(ctx); err != nil {
			return errors.Wrapf(err, "drain pool %s", p.name)
		}
	}
	return nil
}

func (p *ThreadPool) beginDrainLocked(policy DrainPolicy) bool {
	switch p.state {
	case PoolActive, PoolPaused:
		p.state = PoolDraining
		p.drainPolicy = policy
	case PoolDraining:
		if policy.restrictiveness() > p.drainPolicy.restrictiveness() {
			p.drainPolicy = policy
		}
	default:
		return false
	}
	p.drainers++
	return true
}

func (p *ThreadPool) endDrainLocked() {
	p.drainers--
	if p.drainers > 0 || p.state != PoolDraining {
		return
	}
	p.state = PoolActive
	p.drainPolicy = DrainBlockInvoke
	// Blocked submitters wait on threadAvailable.
	p.threadAvailable.NotifyAll()
}

// Pause stops workers from taking new tasks. Running tasks finish normally.
func (p *ThreadPool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PoolActive {
		p.state = PoolPaused
	}
}

// Unpause lets workers take tasks again.
func (p *ThreadPool) Unpause() {
	p.mu.Lock()
	if p.state == PoolPaused {
		p.state = PoolActive
	}
	p.mu.Unlock()
	p.needThread.NotifyAll()
}

// Stop shuts the pool down and joins every worker. With processQueued the
// pending tasks run first; otherwise they are discarded. Running tasks always
// finish. Stop is idempotent and concurrent callers return together.
func (p *ThreadPool) Stop(processQueued bool) {
	p.mu.Lock()
	switch p.state {
	case PoolStopped:
		p.mu.Unlock()
		return
	case PoolStopping:
		for p.state != PoolStopped {
			p.allStopped.Wait()
		}
		p.mu.Unlock()
		return
	}
	p.state = PoolStopping
	p.mu.Unlock()

	p.logger.Info("stopping thread pool", F("pool", p.name), F("process_queued", processQueued))
	p.stopping.NotifyAll()
	p.threadAvailable.NotifyAll()
	p.needThread.NotifyAll()

	if processQueued {
		p.mu.Lock()
		for p.pending.Length()+p.active > 0 {
			p.threadAvailable.Wait()
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.quit = true
	var dropped []*namedTask
	for p.pending.Length() > 0 {
		dropped = append(dropped, p.pending.Remove().(*namedTask))
	}
	p.discarded += uint64(len(dropped))
	// Tasks admitted just before Stopping may still be starting workers.
	for p.spawning > 0 {
		p.threadAvailable.Wait()
	}
	p.mu.Unlock()
	p.needThread.NotifyAll()

	for _, entry := range dropped {
		dispose(entry.task, entry.ownership)
		p.metrics.RecordTaskRejected(p.name, "stopped")
		p.rejectedHandler.HandleRejectedTask(p.name, entry.name, "stopped")
	}

	failures := p.workers.JoinAll()

	p.mu.Lock()
	p.generalErrors += len(failures)
	p.active = 0
	p.state = PoolStopped
	p.mu.Unlock()

	p.allStopped.NotifyAll()
	p.threadAvailable.NotifyAll()
	p.stopping.NotifyAll()
	p.logger.Info("thread pool stopped",
		F("pool", p.name), F("discarded", len(dropped)), F("join_failures", len(failures)))
}

// Close stops the pool without running queued tasks.
func (p *ThreadPool) Close() error {
	p.Stop(false)
	return nil
}

// WaitUntilStopping blocks until Stop has begun or TriggerStoppingCondition
// is called. A non-positive timeout waits forever. It reports whether the
// pool is stopping.
func (p *ThreadPool) WaitUntilStopping(timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state >= PoolStopping {
		return true
	}
	if timeout > 0 {
		p.stopping.WaitTimeout(timeout)
	} else {
		p.stopping.Wait()
	}
	return p.state >= PoolStopping
}

// TriggerStoppingCondition wakes WaitUntilStopping callers without stopping.
func (p *ThreadPool) TriggerStoppingCondition() {
	p.stopping.NotifyAll()
}

// =============================================================================
// Sizing
// =============================================================================

// SetMaxThreads changes the worker limit. Existing workers are kept even when
// the limit shrinks. The queue size is raised to n if it is smaller, so the
// pending bound never drops below the allocated workers.
func (p *ThreadPool) SetMaxThreads(n int) error {
	if n <= 0 {
		return errors.Wrapf(ErrInvalidSize, "pool %s max threads %d", p.name, n)
	}
	p.mu.Lock()
	p.maxThreads = n
	if p.queueSize < n {
		p.queueSize = n
	}
	p.mu.Unlock()
	p.needThread.NotifyAll()
	return nil
}

// SetQueueSize changes the pending bound; 0 means twice MaxThreads. It may not
// drop below the number of allocated workers.
func (p *ThreadPool) SetQueueSize(n int) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidSize, "pool %s queue size %d", p.name, n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n == 0 {
		n = 2 * p.maxThreads
	}
	if n < p.allocated {
		return errors.Wrapf(ErrInvalidSize, "pool %s queue size %d below %d allocated workers", p.name, n, p.allocated)
	}
	p.queueSize = n
	return nil
}

// =============================================================================
// Introspection
// =============================================================================

// Name returns the pool's label.
func (p *ThreadPool) Name() string { return p.name }

func (p *ThreadPool) MaxThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxThreads
}

func (p *ThreadPool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueSize
}

// NumThreadsAllocated is the number of workers created so far.
func (p *ThreadPool) NumThreadsAllocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// NumThreadsActive is the number of workers currently running a task.
func (p *ThreadPool) NumThreadsActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// RequestCount is the number of queued plus running tasks.
func (p *ThreadPool) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.Length() + p.active
}

func (p *ThreadPool) IsBusy() bool { return p.RequestCount() > 0 }

func (p *ThreadPool) State() PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ThreadPool) IsPaused() bool   { return p.State() == PoolPaused }
func (p *ThreadPool) IsStopping() bool { return p.State() == PoolStopping }
func (p *ThreadPool) IsStopped() bool  { return p.State() == PoolStopped }

// Errors returns the worker-level and task-level failure counts.
func (p *ThreadPool) Errors() (general, task int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generalErrors, p.taskErrors
}

// Stats returns a snapshot of the pool counters.
func (p *ThreadPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:          p.name,
		State:         p.state,
		MaxThreads:    p.maxThreads,
		QueueSize:     p.queueSize,
		Allocated:     p.allocated,
		Active:        p.active,
		Queued:        p.pending.Length(),
		Completed:     p.completed,
		Overflowed:    p.overflowed,
		Discarded:     p.discarded,
		TaskErrors:    p.taskErrors,
		GeneralErrors: p.generalErrors,
		Running:       p.state < PoolStopping,
	}
}

// InFlight lists running tasks followed by queued ones, each in submission order.
func (p *ThreadPool) InFlight() []TaskInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]TaskInfo, 0, len(p.inFlight)+p.pending.Length())
	for _, e := range p.inFlight {
		out = append(out, TaskInfo{Name: e.name, Sequence: e.sequence, Ownership: e.ownership, Running: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })

	for i := 0; i < p.pending.Length(); i++ {
		e := p.pending.Get(i).(*namedTask)
		out = append(out, TaskInfo{Name: e.name, Sequence: e.sequence, Ownership: e.ownership})
	}
	return out
}

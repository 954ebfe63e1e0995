package threadservice

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-thread-service/core"
	"github.com/pkg/errors"
)

// PoolID identifies a pool registered with a Service.
type PoolID uint64

// GlobalPoolID is the pool created by Activate. Submissions to unknown ids
// fall back to it.
const GlobalPoolID PoolID = 0

// Ids are unique across every Service in the process.
var lastPoolID atomic.Uint64

func nextPoolID() PoolID {
	return PoolID(lastPoolID.Add(1))
}

// PoolSpec describes a named pool created during Activate.
type PoolSpec struct {
	Name      string
	Threads   int
	QueueSize int
	OwnsTasks bool
}

// ServiceConfig configures a Service. Zero values select defaults.
type ServiceConfig struct {
	// GlobalThreads sizes the global pool. Defaults to the CPUs available to
	// the process, at least 2.
	GlobalThreads int

	// GlobalQueueSize bounds the global pool's pending tasks. 0 means twice
	// GlobalThreads.
	GlobalQueueSize int

	// Pools are created by Activate after the global pool.
	Pools []PoolSpec

	Logger  core.Logger
	Metrics core.Metrics
}

// Service owns a registry of thread pools keyed by PoolID, including the
// global pool, plus a group of long-living threaders.
type Service struct {
	mu         sync.Mutex
	pools      map[PoolID]*core.ThreadPool
	names      map[string]PoolID
	active     bool
	peakQueued int

	longLiving *core.ThreaderGroup
	cfg        ServiceConfig
	logger     core.Logger
	metrics    core.Metrics
}

// NewService creates an inactive Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NilMetrics{}
	}
	return &Service{
		pools:      make(map[PoolID]*core.ThreadPool),
		names:      make(map[string]PoolID),
		longLiving: core.NewThreaderGroup(cfg.Logger),
		cfg:        cfg,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Activate creates the global pool and any configured pools. Calling it on an
// active Service does nothing.
func (s *Service) Activate() error {
	threads := s.cfg.GlobalThreads
	if threads <= 0 {
		threads = max(core.HardwareConcurrency(), 2)
	}
	if s.cfg.GlobalQueueSize < 0 {
		return errors.Wrapf(core.ErrInvalidSize, "global queue size %d", s.cfg.GlobalQueueSize)
	}
	for _, spec := range s.cfg.Pools {
		if spec.Threads <= 0 || spec.QueueSize < 0 {
			return errors.Wrapf(core.ErrInvalidSize, "pool %q threads %d queue %d", spec.Name, spec.Threads, spec.QueueSize)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	s.pools[GlobalPoolID] = core.NewThreadPool(threads, s.cfg.GlobalQueueSize, s.poolConfig("global", false))
	s.names["global"] = GlobalPoolID
	for _, spec := range s.cfg.Pools {
		s.registerLocked(spec.Name, spec.Threads, spec.QueueSize, spec.OwnsTasks)
	}
	s.active = true

	s.logger.Info("thread service activated", core.F("global_threads", threads), core.F("pools", len(s.pools)))
	return nil
}

// Deactivate stops every registered pool without running queued tasks and
// interrupts long-living threaders.
func (s *Service) Deactivate() {
	s.mu.Lock()
	pools := s.pools
	s.pools = make(map[PoolID]*core.ThreadPool)
	s.names = make(map[string]PoolID)
	s.active = false
	s.mu.Unlock()

	for _, id := range sortedIDs(pools) {
		pools[id].Stop(false)
	}
	s.longLiving.InterruptAll()
	s.logger.Info("thread service deactivated", core.F("pools", len(pools)))
}

func (s *Service) poolConfig(name string, ownsTasks bool) *core.PoolConfig {
	return &core.PoolConfig{
		Name:      name,
		OwnsTasks: ownsTasks,
		Logger:    s.logger,
		Metrics:   s.metrics,
	}
}

func (s *Service) registerLocked(name string, nThreads, queueSize int, ownsTasks bool) PoolID {
	id := nextPoolID()
	if name == "" {
		name = fmt.Sprintf("pool-%d", id)
	}
	s.pools[id] = core.NewThreadPool(nThreads, queueSize, s.poolConfig(name, ownsTasks))
	s.names[name] = id
	return id
}

// CreateThreadPool registers a new pool and returns its id. It panics if
// nThreads is not positive, as NewThreadPool does.
func (s *Service) CreateThreadPool(nThreads, queueSize int, ownsTasks bool) PoolID {
	return s.CreateNamedThreadPool("", nThreads, queueSize, ownsTasks)
}

// CreateNamedThreadPool is CreateThreadPool with a label for logs, metrics and
// PoolByName. An empty name is replaced by "pool-<id>".
func (s *Service) CreateNamedThreadPool(name string, nThreads, queueSize int, ownsTasks bool) PoolID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.registerLocked(name, nThreads, queueSize, ownsTasks)
	s.logger.Debug("thread pool created", core.F("pool_id", id), core.F("pool", s.pools[id].Name()))
	return id
}

// DeleteThreadPool unregisters a pool and stops it, draining queued tasks
// first when processQueued is set. It returns once the pool has stopped.
func (s *Service) DeleteThreadPool(id PoolID, processQueued bool) error {
	s.mu.Lock()
	pool, ok := s.pools[id]
	if ok {
		delete(s.pools, id)
		if s.names[pool.Name()] == id {
			delete(s.names, pool.Name())
		}
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Error("delete of unknown thread pool", core.F("pool_id", id))
		return errors.Wrapf(ErrUnknownPool, "delete pool %d", id)
	}

	pool.Stop(processQueued)
	s.logger.Debug("thread pool deleted", core.F("pool_id", id), core.F("process_queued", processQueued))
	return nil
}

// Submit hands task to the pool with the given id. Unknown ids are logged and
// the task goes to the global pool. An overflowing pool discards the task,
// logs it and reports it through the result, not the error.
func (s *Service) Submit(name string, task core.Task, id PoolID) (core.AdmissionResult, error) {
	s.mu.Lock()
	pool, ok := s.pools[id]
	if !ok {
		pool, ok = s.pools[GlobalPoolID]
		if !ok {
			s.mu.Unlock()
			return core.AdmissionResult{}, errors.Wrapf(ErrNotActive, "submit %q to pool %d", name, id)
		}
		s.logger.Warn("submit to unknown thread pool, using global pool", core.F("pool_id", id), core.F("task", name))
		id = GlobalPoolID
	}
	s.mu.Unlock()

	res, err := pool.Invoke(task, name)
	if err != nil {
		return res, errors.Wrapf(err, "submit %q to pool %d", name, id)
	}

	s.mu.Lock()
	if res.Queued > s.peakQueued {
		s.peakQueued = res.Queued
	}
	s.mu.Unlock()
	return res, nil
}

// SubmitLongLivingTask runs task on its own threader outside every pool.
// The service keeps only unfinished long-living threaders, for Deactivate.
func (s *Service) SubmitLongLivingTask(name string, task core.Task) (*core.Threader, error) {
	s.longLiving.Prune()
	th, _, err := s.longLiving.CreateThreader(task, name)
	if err != nil {
		return nil, errors.Wrapf(err, "submit long-living task %q", name)
	}
	return th, nil
}

// Pool returns the pool registered under id.
func (s *Service) Pool(id PoolID) (*core.ThreadPool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	return p, ok
}

// PoolByName returns the id of the pool registered with name.
func (s *Service) PoolByName(name string) (PoolID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.names[name]
	return id, ok
}

// PoolIDs returns the registered ids in ascending order.
func (s *Service) PoolIDs() []PoolID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.pools)
}

// Stats snapshots every registered pool.
func (s *Service) Stats() map[PoolID]core.PoolStats {
	s.mu.Lock()
	pools := make(map[PoolID]*core.ThreadPool, len(s.pools))
	for id, p := range s.pools {
		pools[id] = p
	}
	s.mu.Unlock()

	out := make(map[PoolID]core.PoolStats, len(pools))
	for id, p := range pools {
		out[id] = p.Stats()
	}
	return out
}

// PeakQueued is the largest queue depth any Submit observed.
func (s *Service) PeakQueued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakQueued
}

// IsActive reports whether Activate has run.
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func sortedIDs(pools map[PoolID]*core.ThreadPool) []PoolID {
	ids := make([]PoolID, 0, len(pools))
	for id := range pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

package prometheus

import (
	"context"
	"sync"
	"time"

	threadservice "github.com/Swind/go-thread-service"
	"github.com/Swind/go-thread-service/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// ServiceSnapshotProvider provides stats for every pool a service owns.
type ServiceSnapshotProvider interface {
	Stats() map[threadservice.PoolID]core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	sourcesMu sync.RWMutex
	pools     map[string]PoolSnapshotProvider
	services  []ServiceSnapshotProvider

	poolQueued     *prom.GaugeVec
	poolActive     *prom.GaugeVec
	poolAllocated  *prom.GaugeVec
	poolMaxThreads *prom.GaugeVec
	poolQueueSize  *prom.GaugeVec
	poolCompleted  *prom.GaugeVec
	poolOverflowed *prom.GaugeVec
	poolTaskErrors *prom.GaugeVec
	poolRunning    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newPoolGauge(name, help string) *prom.GaugeVec {
	return prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "threadservice",
		Name:      name,
		Help:      help,
	}, []string{"pool"})
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval:       interval,
		pools:          make(map[string]PoolSnapshotProvider),
		poolQueued:     newPoolGauge("pool_queued", "Queued tasks per pool."),
		poolActive:     newPoolGauge("pool_active", "Running tasks per pool."),
		poolAllocated:  newPoolGauge("pool_allocated", "Worker threads created per pool."),
		poolMaxThreads: newPoolGauge("pool_max_threads", "Worker limit per pool."),
		poolQueueSize:  newPoolGauge("pool_queue_size", "Pending bound per pool."),
		poolCompleted:  newPoolGauge("pool_completed", "Tasks finished per pool."),
		poolOverflowed: newPoolGauge("pool_overflowed", "Tasks discarded on overflow per pool."),
		poolTaskErrors: newPoolGauge("pool_task_errors", "Failed tasks per pool."),
		poolRunning:    newPoolGauge("pool_running", "Pool running state (1=running, 0=stopping or stopped)."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolAllocated, &p.poolMaxThreads, &p.poolQueueSize,
		&p.poolCompleted, &p.poolOverflowed, &p.poolTaskErrors, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}
	return p, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.sourcesMu.Lock()
	p.pools[name] = provider
	p.sourcesMu.Unlock()
}

// AddService exports every pool the service has registered at each poll,
// labelled by pool name.
func (p *SnapshotPoller) AddService(provider ServiceSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.sourcesMu.Lock()
	p.services = append(p.services, provider)
	p.sourcesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.sourcesMu.RLock()
	defer p.sourcesMu.RUnlock()

	for name, provider := range p.pools {
		p.export(name, provider.Stats())
	}
	for _, svc := range p.services {
		for _, stats := range svc.Stats() {
			p.export(normalizeLabel(stats.Name, "pool"), stats)
		}
	}
}

func (p *SnapshotPoller) export(name string, stats core.PoolStats) {
	p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
	p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
	p.poolAllocated.WithLabelValues(name).Set(float64(stats.Allocated))
	p.poolMaxThreads.WithLabelValues(name).Set(float64(stats.MaxThreads))
	p.poolQueueSize.WithLabelValues(name).Set(float64(stats.QueueSize))
	p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
	p.poolOverflowed.WithLabelValues(name).Set(float64(stats.Overflowed))
	p.poolTaskErrors.WithLabelValues(name).Set(float64(stats.TaskErrors))
	if stats.Running {
		p.poolRunning.WithLabelValues(name).Set(1)
	} else {
		p.poolRunning.WithLabelValues(name).Set(0)
	}
}

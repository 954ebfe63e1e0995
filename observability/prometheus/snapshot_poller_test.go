package prometheus

import (
	"context"
	"testing"
	"time"

	threadservice "github.com/Swind/go-thread-service"
	"github.com/Swind/go-thread-service/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

type serviceStub struct {
	stats map[threadservice.PoolID]core.PoolStats
}

func (s serviceStub) Stats() map[threadservice.PoolID]core.PoolStats { return s.stats }

// TestSnapshotPoller_CollectsPoolStats verifies pool snapshots reach the gauges
// Given: a poller with one pool provider and one service provider
// When: the poller runs
// Then: gauges labelled by pool name carry the snapshot values
func TestSnapshotPoller_CollectsPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Queued:     4,
		Active:     2,
		Allocated:  3,
		MaxThreads: 8,
		Running:    true,
	}})
	poller.AddService(serviceStub{stats: map[threadservice.PoolID]core.PoolStats{
		threadservice.GlobalPoolID: {Name: "global", Overflowed: 5, Running: false},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("pool-a"))
		overflowed := testutil.ToFloat64(poller.poolOverflowed.WithLabelValues("global"))
		return active == 2 && overflowed == 5
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a")))
	assert.Equal(t, float64(0), testutil.ToFloat64(poller.poolRunning.WithLabelValues("global")))
	assert.Equal(t, float64(8), testutil.ToFloat64(poller.poolMaxThreads.WithLabelValues("pool-a")))
}

// TestSnapshotPoller_ThreadPoolProvider verifies a real pool satisfies PoolSnapshotProvider
// Given: an idle pool registered with the poller
// When: the poller runs
// Then: max threads and queue size are exported
func TestSnapshotPoller_ThreadPoolProvider(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	pool := core.NewThreadPool(3, 0, &core.PoolConfig{Name: "real", Logger: core.NewNoOpLogger()})
	defer pool.Stop(false)
	poller.AddPool(pool.Name(), pool)

	poller.Start(context.Background())
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.poolQueueSize.WithLabelValues("real")) == 6
	})
	assert.Equal(t, float64(3), testutil.ToFloat64(poller.poolMaxThreads.WithLabelValues("real")))
}

// TestSnapshotPoller_StartStop_Idempotent verifies repeated Start and Stop are safe
// Given: a poller
// When: Start and Stop are each called twice
// Then: nothing blocks or panics
func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

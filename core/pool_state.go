package core

// PoolState is the lifecycle state of a ThreadPool.
//
//	Active -> Paused -> Active
//	Active | Paused -> Draining -> Active
//	any -> Stopping -> Stopped
type PoolState int

const (
	PoolActive PoolState = iota
	PoolPaused
	PoolDraining
	PoolStopping
	PoolStopped
)

func (s PoolState) String() string {
	switch s {
	case PoolActive:
		return "active"
	case PoolPaused:
		return "paused"
	case PoolDraining:
		return "draining"
	case PoolStopping:
		return "stopping"
	case PoolStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DrainPolicy decides what Invoke does while a Wait is draining the pool.
type DrainPolicy int

const (
	// DrainBlockInvoke parks submitters until the drain finishes.
	DrainBlockInvoke DrainPolicy = iota
	// DrainDenyInvoke rejects submissions with ErrInvokeDenied.
	DrainDenyInvoke
	// DrainAllowInvoke keeps admitting work; the drain then also waits for it.
	DrainAllowInvoke
)

func (p DrainPolicy) String() string {
	switch p {
	case DrainBlockInvoke:
		return "block"
	case DrainDenyInvoke:
		return "deny"
	case DrainAllowInvoke:
		return "allow"
	default:
		return "unknown"
	}
}

// restrictiveness orders policies for overlapping drains: the strictest wins.
func (p DrainPolicy) restrictiveness() int {
	switch p {
	case DrainDenyInvoke:
		return 2
	case DrainBlockInvoke:
		return 1
	default:
		return 0
	}
}

// AdmissionResult is the pool snapshot returned by Invoke.
type AdmissionResult struct {
	Active     int
	Allocated  int
	MaxThreads int
	Queued     int
	QueueSize  int
	// Overflow is set when the task was discarded because the pool was full.
	Overflow bool
}
